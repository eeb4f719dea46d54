// Package cancellation реализует процесс отмены подписки: запуск через адаптер
// мерчанта, отложенное завершение и запрос статуса.
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// ErrAdapterFailed возвращается, если адаптер не смог отправить запрос на отмену.
// Попытка и подписка к этому моменту уже переведены в failed.
var ErrAdapterFailed = errors.New("cancellation adapter failed")

// Repository описывает хранилище, которое использует сервис.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetSubscription(ctx context.Context, userID, id int64) (*models.Subscription, error)
	GetSubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id int64, status models.Status) error
	CreateCancellation(ctx context.Context, userID, subscriptionID int64, method string, status models.CancelStatus) (*models.CancellationRequest, error)
	GetCancellation(ctx context.Context, id int64) (*models.CancellationRequest, error)
	LatestCancellation(ctx context.Context, subscriptionID int64) (*models.CancellationRequest, error)
	SetCancellationVendorRef(ctx context.Context, id int64, vendorRef string) error
	FinishCancellation(ctx context.Context, id int64, status models.CancelStatus, errText string, at time.Time) error
	AppendEvent(ctx context.Context, userID int64, eventType, message string, payload any) error
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Scheduler откладывает завершение отмены.
type Scheduler interface {
	Schedule(id int64, delay time.Duration, fn func(ctx context.Context))
}

// Status — состояние подписки и её последней попытки отмены.
type Status struct {
	SubscriptionID int64                       `json:"subscription_id"`
	Status         models.Status               `json:"status"`
	Request        *models.CancellationRequest `json:"request"`
}

// Service управляет попытками отмены.
type Service struct {
	repo      Repository
	adapter   Adapter
	scheduler Scheduler
	publisher Publisher
	cache     cache.Cache
	metrics   *metrics.Metrics
	log       *slog.Logger
	delay     time.Duration
	now       func() time.Time
}

// NewService создаёт Service. delay — задержка до автоматического завершения;
// нулевая задержка завершает отмену синхронно.
func NewService(repo Repository, adapter Adapter, scheduler Scheduler, publisher Publisher,
	c cache.Cache, m *metrics.Metrics, log *slog.Logger, delay time.Duration) *Service {
	return &Service{
		repo:      repo,
		adapter:   adapter,
		scheduler: scheduler,
		publisher: publisher,
		cache:     c,
		metrics:   m,
		log:       log,
		delay:     delay,
		now:       time.Now,
	}
}

// Start запускает отмену подписки пользователя. Пустой method означает auto.
func (s *Service) Start(ctx context.Context, userID, subscriptionID int64, method string) (*models.CancellationRequest, error) {
	const op = "cancellation.Start"

	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = models.MethodAuto
	}
	if method != models.MethodAuto && method != models.MethodAssisted {
		return nil, fmt.Errorf("%s: %w: method must be auto or assisted", op, models.ErrInvalidInput)
	}

	var (
		sub *models.Subscription
		req *models.CancellationRequest
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = s.repo.GetSubscription(ctx, userID, subscriptionID); err != nil {
			return err
		}
		if req, err = s.repo.CreateCancellation(ctx, userID, sub.ID, method, models.CancelInProgress); err != nil {
			return err
		}
		if err = s.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.StatusCanceling); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, userID, models.EventCancelStart,
			"Starting cancellation for "+sub.Merchant,
			map[string]any{"subscription_id": sub.ID, "request_id": req.ID, "method": method})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	s.metrics.Cancellation("started")

	log := s.log.With(
		slog.String("op", op),
		slog.Int64("subscription_id", sub.ID),
		slog.Int64("request_id", req.ID),
	)

	target := Target{RequestID: req.ID, Subscription: *sub}
	if user, err := s.repo.GetUserByID(ctx, userID); err == nil {
		target.UserEmail = user.Email
	}

	vendorRef, adapterErr := s.adapter.Cancel(ctx, target)
	if adapterErr != nil {
		log.Error("cancellation adapter failed", sl.Err(adapterErr))
		if err := s.fail(ctx, userID, sub.ID, req.ID, adapterErr); err != nil {
			log.Error("failed to record cancellation failure", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w: %s", op, ErrAdapterFailed, adapterErr.Error())
	}

	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetCancellationVendorRef(ctx, req.ID, vendorRef); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, userID, models.EventCancelQueued,
			"Adapter sent; awaiting completion",
			map[string]any{"subscription_id": sub.ID, "request_id": req.ID, "vendor_ref": vendorRef})
	})
	if err != nil {
		// запрос мерчанту уже отправлен, завершение планируется без vendor_ref
		log.Error("failed to record queued cancellation", sl.Err(err))
	} else {
		req.VendorRef = &vendorRef
		log.Info("cancellation queued", slog.String("vendor_ref", vendorRef))
	}

	if s.delay <= 0 {
		s.Complete(ctx, req.ID)
		if done, err := s.repo.GetCancellation(ctx, req.ID); err == nil {
			req = done
		}
		return req, nil
	}

	s.scheduler.Schedule(req.ID, s.delay, func(ctx context.Context) {
		s.Complete(ctx, req.ID)
	})
	return req, nil
}

func (s *Service) fail(ctx context.Context, userID, subscriptionID, requestID int64, cause error) error {
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.FinishCancellation(ctx, requestID, models.CancelFailed, cause.Error(), s.now().UTC()); err != nil {
			return err
		}
		if err := s.repo.UpdateSubscriptionStatus(ctx, subscriptionID, models.StatusFailed); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, userID, models.EventCancelFailed, cause.Error(),
			map[string]any{"subscription_id": subscriptionID, "request_id": requestID})
	})
	s.invalidate(ctx, userID)
	s.metrics.Cancellation("failed")
	return err
}

// Complete завершает отмену: попытка становится succeeded, подписка canceled.
// Отсутствующие или уже завершённые записи пропускаются без изменений.
func (s *Service) Complete(ctx context.Context, requestID int64) {
	const op = "cancellation.Complete"
	log := s.log.With(slog.String("op", op), slog.Int64("request_id", requestID))

	var (
		req *models.CancellationRequest
		sub *models.Subscription
	)
	completedAt := s.now().UTC()
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetCancellation(ctx, requestID)
		if errors.Is(err, models.ErrNotFound) {
			req = nil
			return nil
		}
		if err != nil {
			return err
		}
		if req.Status != models.CancelInProgress {
			req = nil
			return nil
		}

		sub, err = s.repo.GetSubscriptionByID(ctx, req.SubscriptionID)
		if errors.Is(err, models.ErrNotFound) {
			req, sub = nil, nil
			return nil
		}
		if err != nil {
			return err
		}

		if err = s.repo.FinishCancellation(ctx, req.ID, models.CancelSucceeded, "", completedAt); err != nil {
			return err
		}
		if err = s.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.StatusCanceled); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, req.UserID, models.EventCancelDone,
			"Cancellation completed for "+sub.Merchant,
			map[string]any{"subscription_id": sub.ID, "request_id": req.ID})
	})
	if err != nil {
		log.Error("failed to complete cancellation", sl.Err(err))
		return
	}
	if req == nil {
		log.Debug("nothing to complete")
		return
	}

	s.invalidate(ctx, req.UserID)
	s.metrics.Cancellation("completed")
	log.Info("cancellation completed", slog.Int64("subscription_id", sub.ID))

	notice := models.CancellationNotice{
		SubscriptionID: sub.ID,
		RequestID:      req.ID,
		Merchant:       sub.Merchant,
		CompletedAt:    completedAt,
	}
	if user, err := s.repo.GetUserByID(ctx, req.UserID); err == nil {
		notice.Email = user.Email
	}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingCancellation, notice); err != nil {
		log.Warn("failed to publish cancellation notice", sl.Err(err))
	}
}

// Status возвращает статус подписки пользователя и её последнюю попытку отмены.
func (s *Service) Status(ctx context.Context, userID, subscriptionID int64) (*Status, error) {
	const op = "cancellation.Status"

	sub, err := s.repo.GetSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result := &Status{SubscriptionID: sub.ID, Status: sub.Status}

	req, err := s.repo.LatestCancellation(ctx, sub.ID)
	switch {
	case err == nil:
		result.Request = req
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	key := cache.SubscriptionsKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", key), sl.Err(err))
	}
}
