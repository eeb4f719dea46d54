// Package subscription содержит бизнес-логику списка подписок: сканирование
// (демо и по транзакциям провайдера), выборки и удаление с кешированием списка.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/detect"
)

// DefaultUpcomingDays — окно выборки предстоящих продлений по умолчанию.
const DefaultUpcomingDays = 7

// Repository описывает хранилище, которое использует сервис.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error)
	ListUpcoming(ctx context.Context, userID int64, before time.Time) ([]models.Subscription, error)
	GetSubscription(ctx context.Context, userID, id int64) (*models.Subscription, error)
	DeleteSubscription(ctx context.Context, userID, id int64) error
	AppendEvent(ctx context.Context, userID int64, eventType, message string, payload any) error
	LatestInstitution(ctx context.Context, userID int64, provider string) (*models.InstitutionConnection, error)
}

// TransactionSource выгружает транзакции связанного счёта.
type TransactionSource interface {
	Transactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error)
}

// TokenOpener расшифровывает сохранённую ссылку на токен провайдера.
type TokenOpener interface {
	Open(sealed string) (string, error)
}

// Options задаёт необязательные параметры сервиса.
type Options struct {
	LookbackDays int
	CacheTTL     time.Duration
	Now          func() time.Time
}

// Service реализует операции над подписками пользователя.
type Service struct {
	repo     Repository
	cache    cache.Cache
	txns     TransactionSource
	tokens   TokenOpener
	metrics  *metrics.Metrics
	log      *slog.Logger
	lookback int
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService создаёт Service.
func NewService(repo Repository, c cache.Cache, txns TransactionSource, tokens TokenOpener, m *metrics.Metrics, log *slog.Logger, opts Options) *Service {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 90
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		cache:    c,
		txns:     txns,
		tokens:   tokens,
		metrics:  m,
		log:      log,
		lookback: opts.LookbackDays,
		cacheTTL: opts.CacheTTL,
		now:      opts.Now,
	}
}

type demoItem struct {
	merchant string
	plan     string
	amount   string
}

var demoSet = []demoItem{
	{merchant: "Netflix", plan: "Standard", amount: "15.49"},
	{merchant: "Spotify", plan: "Premium", amount: "10.99"},
	{merchant: "LA Fitness", plan: "Single Club", amount: "34.99"},
}

// ScanDemo сохраняет фиксированный набор демо-подписок и возвращает их.
func (s *Service) ScanDemo(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "subscription.ScanDemo"

	now := s.now().UTC()
	out := make([]models.Subscription, 0, len(demoSet))
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		for _, it := range demoSet {
			plan := it.plan
			sub, err := s.repo.UpsertSubscription(ctx, models.Subscription{
				UserID:        userID,
				Merchant:      it.merchant,
				Plan:          &plan,
				Amount:        decimal.RequireFromString(it.amount),
				Interval:      models.IntervalMonthly,
				NextRenewalAt: &now,
			})
			if err != nil {
				return err
			}
			out = append(out, *sub)
		}
		return s.repo.AppendEvent(ctx, userID, models.EventScanFake,
			fmt.Sprintf("Demo scan added %d subscriptions", len(out)),
			map[string]any{"count": len(out)})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, userID)
	s.metrics.Scan("fake", len(out))
	return out, nil
}

// ScanProvider выгружает транзакции последнего подключённого счёта,
// находит регулярные платежи и сохраняет их. Возвращает все подписки пользователя.
func (s *Service) ScanProvider(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "subscription.ScanProvider"

	conn, err := s.repo.LatestInstitution(ctx, userID, models.ProviderPlaid)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: no plaid connection for user", op, models.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	accessToken, err := s.tokens.Open(conn.AccessTokenRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -s.lookback)
	txns, err := s.txns.Transactions(ctx, accessToken, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	candidates := detect.Detect(txns)

	err = s.repo.InTx(ctx, func(ctx context.Context) error {
		for _, c := range candidates {
			renewal := c.NextRenewalAt
			if _, err := s.repo.UpsertSubscription(ctx, models.Subscription{
				UserID:        userID,
				Merchant:      c.Merchant,
				Amount:        c.Amount,
				Interval:      c.Interval,
				NextRenewalAt: &renewal,
			}); err != nil {
				return err
			}
		}
		return s.repo.AppendEvent(ctx, userID, models.EventScanReal,
			fmt.Sprintf("Scanned %d transactions, detected %d subscriptions", len(txns), len(candidates)),
			map[string]any{"transactions": len(txns), "detected": len(candidates)})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, userID)
	s.metrics.Scan("real", len(candidates))
	s.log.Info("provider scan finished",
		slog.Int64("user_id", userID),
		slog.Int("transactions", len(txns)),
		slog.Int("detected", len(candidates)))

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// List возвращает подписки пользователя, используя кеш.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "subscription.List"

	key := cache.SubscriptionsKey(userID)
	var cached []models.Subscription
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, key, subs, s.cacheTTL); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
	}
	return subs, nil
}

// Upcoming возвращает активные и отменяемые подписки, продлевающиеся в ближайшие days дней.
func (s *Service) Upcoming(ctx context.Context, userID int64, days int) ([]models.Subscription, error) {
	const op = "subscription.Upcoming"
	if days < 0 {
		return nil, fmt.Errorf("%s: %w: days must not be negative", op, models.ErrInvalidInput)
	}
	subs, err := s.repo.ListUpcoming(ctx, userID, s.now().UTC().AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Remove удаляет подписку пользователя.
func (s *Service) Remove(ctx context.Context, userID, id int64) error {
	const op = "subscription.Remove"

	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		sub, err := s.repo.GetSubscription(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteSubscription(ctx, userID, id); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, userID, models.EventSubscriptionRemoved,
			"Removed "+sub.Merchant, map[string]any{"subscription_id": id})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	key := cache.SubscriptionsKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", key), sl.Err(err))
	}
}
