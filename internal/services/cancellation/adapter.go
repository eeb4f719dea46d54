package cancellation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v3"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// ErrNoContact возвращается, если для мерчанта не настроен адрес отмены.
var ErrNoContact = errors.New("no cancellation contact for merchant")

// Target описывает подписку, которую нужно отменить у мерчанта.
type Target struct {
	RequestID    int64
	Subscription models.Subscription
	UserEmail    string
}

// Adapter отправляет запрос на отмену мерчанту и возвращает ссылку на него.
type Adapter interface {
	Cancel(ctx context.Context, target Target) (string, error)
}

// StubAdapter всегда успешен.
type StubAdapter struct{}

// Cancel возвращает ссылку вида stub-<uuid>.
func (StubAdapter) Cancel(context.Context, Target) (string, error) {
	return "stub-" + uuid.NewString(), nil
}

// EmailSender — часть клиента Resend, отправляющая письма.
type EmailSender interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailAdapter пишет мерчанту письмо с просьбой отменить подписку.
type EmailAdapter struct {
	sender   EmailSender
	from     string
	contacts map[string]string
}

// NewEmailAdapter создаёт адаптер поверх клиента Resend. contacts сопоставляет
// нормализованное имя мерчанта и адрес службы поддержки.
func NewEmailAdapter(apiKey, from string, contacts map[string]string) *EmailAdapter {
	return newEmailAdapter(resend.NewClient(apiKey).Emails, from, contacts)
}

func newEmailAdapter(sender EmailSender, from string, contacts map[string]string) *EmailAdapter {
	normalized := make(map[string]string, len(contacts))
	for merchant, addr := range contacts {
		normalized[strings.ToLower(merchant)] = addr
	}
	return &EmailAdapter{sender: sender, from: from, contacts: normalized}
}

// Cancel отправляет письмо и возвращает ID письма в Resend.
func (a *EmailAdapter) Cancel(ctx context.Context, target Target) (string, error) {
	const op = "cancellation.EmailAdapter.Cancel"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	to, ok := a.contacts[strings.ToLower(target.Subscription.Merchant)]
	if !ok {
		return "", fmt.Errorf("%s: %w: %s", op, ErrNoContact, target.Subscription.Merchant)
	}

	params := &resend.SendEmailRequest{
		From:    a.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Cancellation request: %s", target.Subscription.Merchant),
		Text: fmt.Sprintf(
			"Please cancel the %s subscription for the account %s.\nReference: %d\n",
			target.Subscription.Merchant, target.UserEmail, target.RequestID),
	}
	sent, err := a.sender.Send(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return "resend-" + sent.Id, nil
}
