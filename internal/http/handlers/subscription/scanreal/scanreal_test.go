package scanreal

import (
	"context"
	"encoding/json"
	"fmt"
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

func (m *ServiceMock) ScanProvider(ctx context.Context, userID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func TestScanRealHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name      string
		mockSubs  []models.Subscription
		mockErr   error
		wantCode  int
		wantError string
	}{
		{
			name:     "success",
			mockSubs: []models.Subscription{{ID: 3, Merchant: "Netflix", Status: models.StatusActive}},
			wantCode: http.StatusOK,
		},
		{
			name:      "no connection",
			mockErr:   fmt.Errorf("subscription.ScanProvider: %w: no plaid connection for user", models.ErrInvalidInput),
			wantCode:  http.StatusBadRequest,
			wantError: "no plaid connection for user",
		},
		{
			name:      "provider rejected token",
			mockErr:   fmt.Errorf("subscription.ScanProvider: %w", &plaid.Error{StatusCode: http.StatusBadRequest, Body: `{"error_code":"INVALID_ACCESS_TOKEN"}`}),
			wantCode:  http.StatusBadRequest,
			wantError: `{"error_code":"INVALID_ACCESS_TOKEN"}`,
		},
		{
			name:      "provider unavailable",
			mockErr:   &plaid.Error{StatusCode: 0, Body: "connection refused"},
			wantCode:  http.StatusBadGateway,
			wantError: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			svc.On("ScanProvider", mock.Anything, int64(5)).Return(tt.mockSubs, tt.mockErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/scan_real", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, int64(5)))
			rec := httptest.NewRecorder()

			New(logger.Discard(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, "OK", got["status"])
				assert.Len(t, got["data"], 1)
			}
			svc.AssertExpectations(t)
		})
	}
}
