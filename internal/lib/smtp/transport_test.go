package smtp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
)

func TestNewMessage(t *testing.T) {
	m := newMessage("tracker@example.com", "user@example.com", "Renewal", "Netflix renews tomorrow")

	assert.Equal(t, []string{"tracker@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"user@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Renewal"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Netflix renews tomorrow")
}

func TestNewTransport_FromFallback(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SMTP
		want string
	}{
		{name: "explicit from", cfg: config.SMTP{User: "smtp-user", From: "noreply@example.com"}, want: "noreply@example.com"},
		{name: "user as from", cfg: config.SMTP{User: "smtp-user@example.com"}, want: "smtp-user@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTransport(tt.cfg).from)
		})
	}
}

func TestTransport_SendEmptyRecipient(t *testing.T) {
	err := NewTransport(config.SMTP{Host: "localhost", Port: 2525}).Send("", "s", "b")
	assert.ErrorIs(t, err, ErrNoRecipient)
}
