package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/logger"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/cancellation"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Status(ctx context.Context, userID, subscriptionID int64) (*cancellation.Status, error) {
	args := m.Called(ctx, userID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cancellation.Status), args.Error(1)
}

func request(subID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cancellations/status/"+subID, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("subscription_id", subID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middlewarectx.UserID, int64(8))
	return req.WithContext(ctx)
}

func TestStatusHandler_WithRequest(t *testing.T) {
	ref := "stub-1"
	svc := &ServiceMock{}
	svc.On("Status", mock.Anything, int64(8), int64(5)).Return(&cancellation.Status{
		SubscriptionID: 5,
		Status:         models.StatusCanceled,
		Request: &models.CancellationRequest{
			ID: 40, SubscriptionID: 5, Method: models.MethodAuto,
			Status: models.CancelSucceeded, VendorRef: &ref, StartedAt: time.Now(),
		},
	}, nil).Once()

	rec := httptest.NewRecorder()
	New(logger.Discard(), svc).ServeHTTP(rec, request("5"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	data := got["data"].(map[string]any)
	assert.Equal(t, "canceled", data["status"])
	cr := data["request"].(map[string]any)
	assert.Equal(t, "succeeded", cr["status"])
	assert.Equal(t, "stub-1", cr["vendor_ref"])
}

func TestStatusHandler_NoRequestYet(t *testing.T) {
	svc := &ServiceMock{}
	svc.On("Status", mock.Anything, int64(8), int64(5)).Return(&cancellation.Status{
		SubscriptionID: 5,
		Status:         models.StatusActive,
	}, nil).Once()

	rec := httptest.NewRecorder()
	New(logger.Discard(), svc).ServeHTTP(rec, request("5"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK","data":{"subscription_id":5,"status":"active","request":null}}`, rec.Body.String())
}

func TestStatusHandler_Errors(t *testing.T) {
	tests := []struct {
		name      string
		subID     string
		mockErr   error
		wantCode  int
		wantError string
	}{
		{name: "not owned", subID: "5", mockErr: fmt.Errorf("cancellation.Status: %w", models.ErrNotFound), wantCode: http.StatusNotFound, wantError: "not found"},
		{name: "bad id", subID: "five", wantCode: http.StatusBadRequest, wantError: "invalid subscription id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			if tt.mockErr != nil {
				svc.On("Status", mock.Anything, int64(8), int64(5)).Return(nil, tt.mockErr).Once()
			}

			rec := httptest.NewRecorder()
			New(logger.Discard(), svc).ServeHTTP(rec, request(tt.subID))

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantError, got["error"])
			svc.AssertExpectations(t)
		})
	}
}
