package cancellation

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resend.SendEmailResponse), args.Error(1)
}

func TestStubAdapter(t *testing.T) {
	a, err := StubAdapter{}.Cancel(context.Background(), Target{})
	require.NoError(t, err)
	b, err := StubAdapter{}.Cancel(context.Background(), Target{})
	require.NoError(t, err)

	assert.Regexp(t, `^stub-[0-9a-f-]{36}$`, a)
	assert.NotEqual(t, a, b)
}

func TestEmailAdapter_Cancel(t *testing.T) {
	target := Target{
		RequestID:    12,
		Subscription: models.Subscription{Merchant: "Netflix"},
		UserEmail:    "user@example.com",
	}

	t.Run("sends to merchant contact", func(t *testing.T) {
		sender := &SenderMock{}
		sender.On("Send", mock.MatchedBy(func(p *resend.SendEmailRequest) bool {
			return p.From == "tracker@example.com" &&
				len(p.To) == 1 && p.To[0] == "cancel@netflix.example" &&
				p.Subject == "Cancellation request: Netflix"
		})).Return(&resend.SendEmailResponse{Id: "em_1"}, nil).Once()

		a := newEmailAdapter(sender, "tracker@example.com", map[string]string{"netflix": "cancel@netflix.example"})
		ref, err := a.Cancel(context.Background(), target)
		require.NoError(t, err)
		assert.Equal(t, "resend-em_1", ref)
		sender.AssertExpectations(t)
	})

	t.Run("unknown merchant", func(t *testing.T) {
		sender := &SenderMock{}
		a := newEmailAdapter(sender, "tracker@example.com", nil)
		_, err := a.Cancel(context.Background(), target)
		assert.ErrorIs(t, err, ErrNoContact)
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("resend error", func(t *testing.T) {
		sender := &SenderMock{}
		sendErr := errors.New("rate limited")
		sender.On("Send", mock.Anything).Return(nil, sendErr)

		a := newEmailAdapter(sender, "tracker@example.com", map[string]string{"Netflix": "cancel@netflix.example"})
		_, err := a.Cancel(context.Background(), target)
		assert.ErrorIs(t, err, sendErr)
	})
}
