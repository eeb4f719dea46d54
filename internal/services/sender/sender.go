// Package sender отправляет письма по сообщениям из очередей уведомлений.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Service превращает уведомления в письма.
type Service struct {
	mailer smtp.Mailer
	log    *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(mailer smtp.Mailer, log *slog.Logger) *Service {
	return &Service{mailer: mailer, log: log}
}

// SendRenewalReminder обрабатывает сообщение из очереди напоминаний о продлении.
func (s *Service) SendRenewalReminder(body []byte) error {
	const op = "sender.SendRenewalReminder"

	var msg models.RenewalInfo
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	subject := fmt.Sprintf("%s renews on %s", msg.Merchant, msg.NextRenewalAt.Format("Jan 2"))
	text := fmt.Sprintf(
		"Hello!\n\nYour %s subscription renews on %s for %s.\n"+
			"If you no longer need it, you can deny it in the app and we will cancel it for you.\n",
		msg.Merchant, msg.NextRenewalAt.Format("January 2, 2006"), msg.Amount.StringFixed(2))

	return s.send(op, msg.Email, subject, text)
}

// SendCancellationNotice обрабатывает сообщение об успешной отмене подписки.
func (s *Service) SendCancellationNotice(body []byte) error {
	const op = "sender.SendCancellationNotice"

	var msg models.CancellationNotice
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	subject := fmt.Sprintf("%s subscription canceled", msg.Merchant)
	text := fmt.Sprintf(
		"Hello!\n\nYour %s subscription was canceled on %s.\nReference: %d\n",
		msg.Merchant, msg.CompletedAt.Format("January 2, 2006"), msg.RequestID)

	return s.send(op, msg.Email, subject, text)
}

// send пропускает сообщения без адреса: повторная доставка их не исправит.
func (s *Service) send(op, to, subject, text string) error {
	log := s.log.With(slog.String("op", op), slog.String("to", to))
	if to == "" {
		log.Warn("message without recipient skipped")
		return nil
	}
	if err := s.mailer.Send(to, subject, text); err != nil {
		log.Error("failed to send email", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("email sent")
	return nil
}
