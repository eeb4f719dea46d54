// Package approval обрабатывает решения пользователя по подпискам.
// Отказ (deny) автоматически запускает отмену подписки.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Repository описывает хранилище, которое использует сервис.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetSubscription(ctx context.Context, userID, id int64) (*models.Subscription, error)
	CreateApproval(ctx context.Context, userID, subscriptionID int64, decision string) (*models.Approval, error)
	UpdateSubscriptionStatus(ctx context.Context, id int64, status models.Status) error
	AppendEvent(ctx context.Context, userID int64, eventType, message string, payload any) error
}

// Canceller запускает отмену подписки.
type Canceller interface {
	Start(ctx context.Context, userID, subscriptionID int64, method string) (*models.CancellationRequest, error)
}

// Result — итог обработки решения.
type Result struct {
	SubscriptionID int64   `json:"subscription_id"`
	Decision       string  `json:"decision"`
	ApprovalID     int64   `json:"approval_id"`
	CancelStarted  bool    `json:"cancel_started"`
	Error          *string `json:"error"`
}

// Service сохраняет решения пользователя.
type Service struct {
	repo      Repository
	canceller Canceller
	cache     cache.Cache
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewService создаёт Service.
func NewService(repo Repository, canceller Canceller, c cache.Cache, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		canceller: canceller,
		cache:     c,
		metrics:   m,
		log:       log,
	}
}

// Decide записывает решение approve или deny. Каждое решение сохраняется
// отдельной записью. При deny подписка переводится в canceling и запускается отмена;
// ошибка запуска не считается ошибкой решения и возвращается в Result.
func (s *Service) Decide(ctx context.Context, userID, subscriptionID int64, decision string) (*Result, error) {
	const op = "approval.Decide"

	decision = strings.ToLower(strings.TrimSpace(decision))
	if decision != models.DecisionApprove && decision != models.DecisionDeny {
		return nil, fmt.Errorf("%s: %w: decision must be 'approve' or 'deny'", op, models.ErrInvalidInput)
	}

	var approval *models.Approval
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		sub, err := s.repo.GetSubscription(ctx, userID, subscriptionID)
		if err != nil {
			return err
		}
		if approval, err = s.repo.CreateApproval(ctx, userID, sub.ID, decision); err != nil {
			return err
		}
		if err = s.repo.AppendEvent(ctx, userID, models.ApprovalEventType(decision),
			fmt.Sprintf("%s %s", decision, sub.Merchant),
			map[string]any{"subscription_id": sub.ID, "approval_id": approval.ID}); err != nil {
			return err
		}
		if decision == models.DecisionDeny {
			return s.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.StatusCanceling)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Approval(decision)

	result := &Result{
		SubscriptionID: subscriptionID,
		Decision:       decision,
		ApprovalID:     approval.ID,
	}
	if decision != models.DecisionDeny {
		return result, nil
	}

	key := cache.SubscriptionsKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", key), sl.Err(err))
	}

	if _, err := s.canceller.Start(ctx, userID, subscriptionID, models.MethodAuto); err != nil {
		msg := err.Error()
		result.Error = &msg
		s.log.Warn("cancellation autostart failed",
			slog.String("op", op),
			slog.Int64("subscription_id", subscriptionID),
			sl.Err(err))
		if err := s.repo.AppendEvent(ctx, userID, models.EventCancelAutostartFailed, msg,
			map[string]any{"subscription_id": subscriptionID}); err != nil {
			s.log.Error("failed to record autostart failure", slog.String("op", op), sl.Err(err))
		}
		return result, nil
	}
	result.CancelStarted = true
	return result, nil
}
