package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/logger"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/plaid"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Exchange(ctx context.Context, userID int64, publicToken string) (*models.InstitutionConnection, error) {
	args := m.Called(ctx, userID, publicToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InstitutionConnection), args.Error(1)
}

func TestExchangeHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		mockConn  *models.InstitutionConnection
		mockErr   error
		callsSvc  bool
		wantCode  int
		wantError string
	}{
		{
			name:     "linked",
			body:     `{"public_token":"public-sandbox-1"}`,
			mockConn: &models.InstitutionConnection{ID: 1, Provider: models.ProviderPlaid, Status: models.ConnectionLinked},
			callsSvc: true,
			wantCode: http.StatusOK,
		},
		{
			name:      "provider rejected token",
			body:      `{"public_token":"public-sandbox-1"}`,
			mockErr:   &plaid.Error{StatusCode: http.StatusBadRequest, Body: "INVALID_PUBLIC_TOKEN"},
			callsSvc:  true,
			wantCode:  http.StatusBadRequest,
			wantError: "INVALID_PUBLIC_TOKEN",
		},
		{
			name:      "missing token",
			body:      `{}`,
			wantCode:  http.StatusBadRequest,
			wantError: "field PublicToken is a required field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			if tt.callsSvc {
				svc.On("Exchange", mock.Anything, int64(6), "public-sandbox-1").Return(tt.mockConn, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/plaid/exchange", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, int64(6)))
			rec := httptest.NewRecorder()

			New(logger.Discard(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, "linked", got["data"].(map[string]any)["status"])
			}
			svc.AssertExpectations(t)
		})
	}
}
