package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/logger"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ScanDemo(ctx context.Context, userID int64) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func TestScanHandler_ServeHTTP(t *testing.T) {
	subs := []models.Subscription{
		{ID: 1, Merchant: "Netflix", Amount: decimal.RequireFromString("15.49"), Interval: models.IntervalMonthly, Status: models.StatusActive},
		{ID: 2, Merchant: "Spotify", Amount: decimal.RequireFromString("10.99"), Interval: models.IntervalMonthly, Status: models.StatusActive},
	}

	tests := []struct {
		name      string
		userID    int64
		mockSubs  []models.Subscription
		mockErr   error
		callsSvc  bool
		wantCode  int
		wantError string
		wantCount int
	}{
		{name: "success", userID: 7, mockSubs: subs, callsSvc: true, wantCode: http.StatusOK, wantCount: 2},
		{name: "no user in context", wantCode: http.StatusUnauthorized, wantError: "unauthorized"},
		{name: "service error", userID: 7, mockErr: errors.New("db down"), callsSvc: true, wantCode: http.StatusInternalServerError, wantError: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			if tt.callsSvc {
				svc.On("ScanDemo", mock.Anything, tt.userID).Return(tt.mockSubs, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/scan", nil)
			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "reqid")
			if tt.userID != 0 {
				ctx = context.WithValue(ctx, middlewarectx.UserID, tt.userID)
			}
			rec := httptest.NewRecorder()

			New(logger.Discard(), svc).ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, "Error", got["status"])
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				data, ok := got["data"].([]any)
				require.True(t, ok)
				assert.Len(t, data, tt.wantCount)
				first := data[0].(map[string]any)
				assert.Equal(t, "Netflix", first["merchant"])
				assert.Equal(t, "15.49", first["amount"])
			}
			svc.AssertExpectations(t)
		})
	}
}
