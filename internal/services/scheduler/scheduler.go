// Package scheduler по расписанию находит подписки с близким продлением
// и публикует напоминания в очередь уведомлений.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// SubscriptionRepository ищет подписки с продлением в заданном интервале
// и отмечает отправленные напоминания.
type SubscriptionRepository interface {
	ListRenewalsDue(ctx context.Context, from, to time.Time) ([]models.RenewalInfo, error)
	MarkReminderSent(ctx context.Context, id int64, renewalAt time.Time) error
}

// Publisher отправляет сообщения в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service публикует напоминания о продлении.
type Service struct {
	repo      SubscriptionRepository
	publisher Publisher
	window    time.Duration
	log       *slog.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewService создает новый экземпляр Service. window — насколько вперёд искать продления.
func NewService(repo SubscriptionRepository, publisher Publisher, window time.Duration, log *slog.Logger) *Service {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	return &Service{
		repo:      repo,
		publisher: publisher,
		window:    window,
		log:       log,
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger))),
		now:       time.Now,
	}
}

// Start регистрирует задачу по расписанию schedule и запускает cron.
// Первый проход выполняется сразу.
func (s *Service) Start(ctx context.Context, schedule string) error {
	const op = "scheduler.Start"

	if _, err := s.cron.AddFunc(schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("scheduled renewal reminders", slog.String("schedule", schedule), slog.Duration("window", s.window))

	s.run(ctx)
	s.cron.Start()
	return nil
}

// Stop останавливает cron и ждёт завершения запущенной задачи.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Service) run(ctx context.Context) {
	if _, err := s.RemindRenewals(ctx); err != nil {
		s.log.Error("renewal reminders failed", sl.Err(err))
	}
}

// RemindRenewals публикует одно сообщение на каждую активную подписку,
// продлевающуюся в ближайшее окно. О каждом продлении напоминание уходит один раз,
// даже если окна соседних запусков пересекаются. Возвращает число опубликованных сообщений.
func (s *Service) RemindRenewals(ctx context.Context) (int, error) {
	const op = "scheduler.RemindRenewals"

	from := s.now().UTC()
	due, err := s.repo.ListRenewalsDue(ctx, from, from.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(due) == 0 {
		s.log.Info("no upcoming renewals found")
		return 0, nil
	}
	s.log.Info("found upcoming renewals", slog.Int("count", len(due)))

	published := 0
	for _, info := range due {
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingRenewal, info); err != nil {
			s.log.Error("failed to publish message",
				slog.Int64("subscription_id", info.SubscriptionID), sl.Err(err))
			continue
		}
		published++
		if err := s.repo.MarkReminderSent(ctx, info.SubscriptionID, info.NextRenewalAt); err != nil {
			s.log.Error("failed to mark reminder as sent",
				slog.Int64("subscription_id", info.SubscriptionID), sl.Err(err))
		}
	}
	return published, nil
}
