package signup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/logger"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func TestSignupHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockToken  string
		mockErr    error
		callsSvc   bool
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{
			name:       "success",
			body:       `{"email":"user@example.com","password":"secret1"}`,
			mockToken:  "tok",
			callsSvc:   true,
			wantCode:   http.StatusOK,
			wantStatus: "OK",
		},
		{
			name:       "invalid json",
			body:       `not json`,
			wantCode:   http.StatusBadRequest,
			wantStatus: "Error",
			wantError:  "invalid request body",
		},
		{
			name:       "missing password",
			body:       `{"email":"user@example.com"}`,
			wantCode:   http.StatusBadRequest,
			wantStatus: "Error",
			wantError:  "field Password is a required field",
		},
		{
			name:       "bad email",
			body:       `{"email":"nope","password":"secret1"}`,
			wantCode:   http.StatusBadRequest,
			wantStatus: "Error",
			wantError:  "field Email must be a valid email",
		},
		{
			name:       "duplicate email",
			body:       `{"email":"user@example.com","password":"secret1"}`,
			mockErr:    fmt.Errorf("auth.Register: %w", models.ErrAlreadyExists),
			callsSvc:   true,
			wantCode:   http.StatusConflict,
			wantStatus: "Error",
			wantError:  "email already registered",
		},
		{
			name:       "service failure",
			body:       `{"email":"user@example.com","password":"secret1"}`,
			mockErr:    errors.New("db down"),
			callsSvc:   true,
			wantCode:   http.StatusInternalServerError,
			wantStatus: "Error",
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ServiceMock{}
			if tt.callsSvc {
				svc.On("Register", mock.Anything, "user@example.com", "secret1").Return(tt.mockToken, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			New(logger.Discard(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				data, ok := got["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tt.mockToken, data["access_token"])
				assert.Equal(t, "bearer", data["token_type"])
			}
			svc.AssertExpectations(t)
		})
	}
}
