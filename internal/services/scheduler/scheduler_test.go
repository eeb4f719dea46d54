package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/logger"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/memstore"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListRenewalsDue(ctx context.Context, from, to time.Time) ([]models.RenewalInfo, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RenewalInfo), args.Error(1)
}

func (m *MockRepository) MarkReminderSent(ctx context.Context, id int64, renewalAt time.Time) error {
	args := m.Called(ctx, id, renewalAt)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	args := m.Called(ctx, routingKey, message)
	return args.Error(0)
}

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *MockRepository, pub *MockPublisher) *Service {
	s := NewService(repo, pub, 24*time.Hour, logger.Discard())
	s.now = func() time.Time { return now }
	return s
}

func TestService_RemindRenewals(t *testing.T) {
	infos := []models.RenewalInfo{
		{SubscriptionID: 1, Email: "a@example.com", Merchant: "Netflix", Amount: decimal.RequireFromString("15.49"), NextRenewalAt: now.Add(time.Hour)},
		{SubscriptionID: 2, Email: "b@example.com", Merchant: "Spotify", Amount: decimal.RequireFromString("10.99"), NextRenewalAt: now.Add(20 * time.Hour)},
		{SubscriptionID: 3, Email: "c@example.com", Merchant: "LA Fitness", Amount: decimal.RequireFromString("34.99"), NextRenewalAt: now.Add(23 * time.Hour)},
	}

	tests := []struct {
		name      string
		due       []models.RenewalInfo
		repoErr   error
		failFor   int64
		published int
		wantErr   bool
	}{
		{name: "publishes each renewal", due: infos, published: 3},
		{name: "nothing due", due: []models.RenewalInfo{}, published: 0},
		{name: "publish failure skips one", due: infos, failFor: 2, published: 2},
		{name: "repository error", repoErr: errors.New("db down"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{}
			pub := &MockPublisher{}
			if tt.repoErr != nil {
				repo.On("ListRenewalsDue", mock.Anything, now, now.Add(24*time.Hour)).Return(nil, tt.repoErr)
			} else {
				repo.On("ListRenewalsDue", mock.Anything, now, now.Add(24*time.Hour)).Return(tt.due, nil)
			}
			for _, info := range tt.due {
				var err error
				if info.SubscriptionID == tt.failFor {
					err = errors.New("channel closed")
				}
				pub.On("Publish", mock.Anything, rabbitmq.RoutingRenewal, info).Return(err).Once()
				if err == nil {
					repo.On("MarkReminderSent", mock.Anything, info.SubscriptionID, info.NextRenewalAt).Return(nil).Once()
				}
			}

			n, err := newTestService(repo, pub).RemindRenewals(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.published, n)
			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestService_RemindRenewals_OncePerRenewal(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	user, err := store.CreateUser(ctx, "a@example.com", "h")
	require.NoError(t, err)
	renewal := now.Add(20 * time.Hour)
	sub := store.AddSubscription(models.Subscription{
		UserID: user, Merchant: "Netflix", Amount: decimal.RequireFromString("15.49"), NextRenewalAt: &renewal,
	})

	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, rabbitmq.RoutingRenewal, mock.MatchedBy(func(info models.RenewalInfo) bool {
		return info.SubscriptionID == sub.ID
	})).Return(nil).Once()

	s := NewService(store, pub, 24*time.Hour, logger.Discard())
	s.now = func() time.Time { return now }

	n, err := s.RemindRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// следующий запуск через 12 часов: окно пересекается с предыдущим
	s.now = func() time.Time { return now.Add(12 * time.Hour) }
	n, err = s.RemindRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// перезапуск процесса
	restarted := NewService(store, pub, 24*time.Hour, logger.Discard())
	restarted.now = s.now
	n, err = restarted.RemindRenewals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pub.AssertExpectations(t)
}

func TestService_Start(t *testing.T) {
	repo := &MockRepository{}
	pub := &MockPublisher{}
	repo.On("ListRenewalsDue", mock.Anything, mock.Anything, mock.Anything).Return([]models.RenewalInfo{}, nil)

	s := newTestService(repo, pub)
	require.NoError(t, s.Start(context.Background(), "@every 1h"))
	s.Stop()

	repo.AssertNumberOfCalls(t, "ListRenewalsDue", 1)
}

func TestService_StartInvalidSchedule(t *testing.T) {
	s := newTestService(&MockRepository{}, &MockPublisher{})
	assert.Error(t, s.Start(context.Background(), "not a schedule"))
}
