package link_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/secret"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/link"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/memstore"
)

const sealKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	args := m.Called(ctx, clientUserID)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	args := m.Called(ctx, publicToken)
	return args.String(0), args.Error(1)
}

func newService(t *testing.T) (*link.Service, *memstore.Store, *ProviderMock, *secret.Sealer) {
	t.Helper()
	store := memstore.New()
	sealer, err := secret.NewSealer(sealKey)
	require.NoError(t, err)
	provider := &ProviderMock{}
	return link.NewService(store, provider, sealer), store, provider, sealer
}

func TestService_LinkToken(t *testing.T) {
	svc, _, provider, _ := newService(t)
	provider.On("CreateLinkToken", mock.Anything, "42").Return("link-sandbox-abc", nil).Once()

	token, err := svc.LinkToken(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-abc", token)
	provider.AssertExpectations(t)
}

func TestService_Exchange(t *testing.T) {
	svc, store, provider, sealer := newService(t)
	ctx := context.Background()
	provider.On("ExchangePublicToken", mock.Anything, "public-sandbox-1").Return("access-sandbox-1", nil).Once()

	conn, err := svc.Exchange(ctx, 5, "public-sandbox-1")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderPlaid, conn.Provider)
	assert.Equal(t, models.ConnectionLinked, conn.Status)
	assert.True(t, strings.HasPrefix(conn.AccessTokenRef, "sb1:"))
	assert.NotContains(t, conn.AccessTokenRef, "access-sandbox-1")

	stored, err := store.LatestInstitution(ctx, 5, models.ProviderPlaid)
	require.NoError(t, err)
	plain, err := sealer.Open(stored.AccessTokenRef)
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-1", plain)
	assert.Equal(t, []string{models.EventInstitutionLinked}, store.EventTypes(5))
}

func TestService_Exchange_Errors(t *testing.T) {
	t.Run("empty token", func(t *testing.T) {
		svc, _, provider, _ := newService(t)
		_, err := svc.Exchange(context.Background(), 1, "  ")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		provider.AssertNotCalled(t, "ExchangePublicToken", mock.Anything, mock.Anything)
	})

	t.Run("provider error", func(t *testing.T) {
		svc, store, provider, _ := newService(t)
		provErr := errors.New("INVALID_PUBLIC_TOKEN")
		provider.On("ExchangePublicToken", mock.Anything, "bad").Return("", provErr)

		_, err := svc.Exchange(context.Background(), 1, "bad")
		assert.ErrorIs(t, err, provErr)
		_, err = store.LatestInstitution(context.Background(), 1, models.ProviderPlaid)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestService_StubLink(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     string
	}{
		{name: "default provider", provider: "", want: models.ProviderPlaid},
		{name: "explicit provider", provider: "Sandbox", want: models.ProviderSandbox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := newService(t)
			conn, err := svc.StubLink(context.Background(), 3, tt.provider)
			require.NoError(t, err)
			assert.Equal(t, tt.want, conn.Provider)
			assert.Equal(t, link.StubAccessRef, conn.AccessTokenRef)
			assert.Equal(t, []string{models.EventInstitutionLinked}, store.EventTypes(3))
		})
	}
}
