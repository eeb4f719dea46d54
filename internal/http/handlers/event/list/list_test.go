package list

import (
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
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) List(ctx context.Context, userID int64, limit int) ([]models.Event, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func TestEventListHandler_ServeHTTP(t *testing.T) {
	events := []models.Event{
		{ID: 2, Type: models.EventCancelStart, Message: "Cancellation started"},
		{ID: 1, Type: models.EventScanFake, Message: "Demo scan"},
	}

	tests := []struct {
		name      string
		query     string
		wantLimit int
		callsSvc  bool
		wantCode  int
		wantError string
	}{
		{name: "service default", query: "", wantLimit: 0, callsSvc: true, wantCode: http.StatusOK},
		{name: "explicit limit", query: "?limit=10", wantLimit: 10, callsSvc: true, wantCode: http.StatusOK},
		{name: "large limit passed through", query: "?limit=1000", wantLimit: 1000, callsSvc: true, wantCode: http.StatusOK},
		{name: "not a number", query: "?limit=all", wantCode: http.StatusBadRequest, wantError: "limit must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			if tt.callsSvc {
				svc.On("List", mock.Anything, int64(3), tt.wantLimit).Return(events, nil).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events"+tt.query, nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, int64(3)))
			rec := httptest.NewRecorder()

			New(logger.Discard(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				data := got["data"].([]any)
				require.Len(t, data, 2)
				assert.Equal(t, "cancel.start", data[0].(map[string]any)["type"])
			}
			svc.AssertExpectations(t)
		})
	}
}
