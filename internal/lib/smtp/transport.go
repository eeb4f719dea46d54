// Package smtp отправляет письма пользователям через SMTP-сервер.
package smtp

import (
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
)

// ErrNoRecipient возвращается при пустом адресе получателя.
var ErrNoRecipient = errors.New("empty recipient")

// Mailer отправляет текстовое письмо.
type Mailer interface {
	Send(to, subject, body string) error
}

// Transport реализует Mailer поверх gomail.
type Transport struct {
	dialer *gomail.Dialer
	from   string
}

// NewTransport создает новый экземпляр Transport. Если From не задан,
// отправителем считается SMTP-пользователь.
func NewTransport(cfg config.SMTP) *Transport {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &Transport{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   from,
	}
}

// Send устанавливает соединение и отправляет одно письмо.
func (t *Transport) Send(to, subject, body string) error {
	const op = "smtp.Send"
	if to == "" {
		return fmt.Errorf("%s: %w", op, ErrNoRecipient)
	}
	if err := t.dialer.DialAndSend(newMessage(t.from, to, subject, body)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func newMessage(from, to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}
