package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/password"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/auth"
)

const secret = "test-secret"

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	args := m.Called(ctx, email, passwordHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *UserRepoMock) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newMaker(t *testing.T, ttl time.Duration) *jwt.Maker {
	t.Helper()
	m, err := jwt.NewMaker(secret, "HS256", ttl)
	require.NoError(t, err)
	return m
}

func signClaims(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = gojwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(r *UserRepoMock)
		wantErr    error
	}{
		{
			name:     "successful registration",
			email:    "  Test@Example.com ",
			password: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("CreateUser", mock.Anything, "test@example.com", mock.MatchedBy(func(hash string) bool {
					return password.CompareHash(hash, "password123") == nil
				})).Return(int64(7), nil).Once()
			},
		},
		{
			name:     "duplicate email",
			email:    "dup@example.com",
			password: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("CreateUser", mock.Anything, "dup@example.com", mock.Anything).
					Return(int64(0), models.ErrAlreadyExists).Once()
			},
			wantErr: models.ErrAlreadyExists,
		},
		{
			name:       "invalid email",
			email:      "not-an-email",
			password:   "password123",
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    models.ErrInvalidInput,
		},
		{
			name:       "short password",
			email:      "short@example.com",
			password:   "123",
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    models.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			tt.setupMocks(repo)
			maker := newMaker(t, time.Hour)
			svc := auth.NewService(repo, maker)

			token, err := svc.Register(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
			} else {
				require.NoError(t, err)
				claims, err := maker.ParseToken(token)
				require.NoError(t, err)
				assert.Equal(t, "7", claims.Subject)
				assert.Equal(t, "test@example.com", claims.Email)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	hash, err := password.GetHash("correctpassword")
	require.NoError(t, err)
	user := &models.User{ID: 3, Email: "user@example.com", PasswordHash: hash}

	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(r *UserRepoMock)
		wantErr    error
	}{
		{
			name:     "successful login",
			email:    "user@example.com",
			password: "correctpassword",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil).Once()
			},
		},
		{
			name:     "wrong password",
			email:    "user@example.com",
			password: "wrong",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			email:    "nobody@example.com",
			password: "correctpassword",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:       "malformed email",
			email:      "",
			password:   "correctpassword",
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    auth.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			tt.setupMocks(repo)
			svc := auth.NewService(repo, newMaker(t, time.Hour))

			token, err := svc.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, token)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	user := &models.User{ID: 11, Email: "user@example.com"}
	uid := int64(11)

	tests := []struct {
		name       string
		token      func(t *testing.T) string
		setupMocks func(r *UserRepoMock)
		wantErr    error
	}{
		{
			name: "numeric subject resolves by id",
			token: func(t *testing.T) string {
				tok, err := newMaker(t, time.Hour).GenerateToken(11, "user@example.com")
				require.NoError(t, err)
				return tok
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByID", mock.Anything, int64(11)).Return(user, nil).Once()
			},
		},
		{
			name: "email subject resolves by email",
			token: func(t *testing.T) string {
				return signClaims(t, jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{Subject: "user@example.com"}})
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil).Once()
			},
		},
		{
			name: "email claim without subject",
			token: func(t *testing.T) string {
				return signClaims(t, jwt.Claims{Email: "user@example.com"})
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").Return(user, nil).Once()
			},
		},
		{
			name: "user_id claim wins over subject",
			token: func(t *testing.T) string {
				return signClaims(t, jwt.Claims{UserID: &uid, RegisteredClaims: gojwt.RegisteredClaims{Subject: "someone@else"}})
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByID", mock.Anything, int64(11)).Return(user, nil).Once()
			},
		},
		{
			name: "no identity claims",
			token: func(t *testing.T) string {
				return signClaims(t, jwt.Claims{})
			},
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    auth.ErrInvalidToken,
		},
		{
			name: "unknown user",
			token: func(t *testing.T) string {
				tok, err := newMaker(t, time.Hour).GenerateToken(99, "ghost@example.com")
				require.NoError(t, err)
				return tok
			},
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByID", mock.Anything, int64(99)).Return(nil, models.ErrNotFound).Once()
			},
			wantErr: auth.ErrInvalidToken,
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				tok, err := newMaker(t, -time.Minute).GenerateToken(11, "user@example.com")
				require.NoError(t, err)
				return tok
			},
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    auth.ErrInvalidToken,
		},
		{
			name: "wrong signature",
			token: func(t *testing.T) string {
				other, err := jwt.NewMaker("other-secret", "HS256", time.Hour)
				require.NoError(t, err)
				tok, err := other.GenerateToken(11, "user@example.com")
				require.NoError(t, err)
				return tok
			},
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    auth.ErrInvalidToken,
		},
		{
			name:       "garbage",
			token:      func(_ *testing.T) string { return "garbage" },
			setupMocks: func(_ *UserRepoMock) {},
			wantErr:    auth.ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			tt.setupMocks(repo)
			svc := auth.NewService(repo, newMaker(t, time.Hour))

			var (
				got *models.User
				err error
			)
			assert.NotPanics(t, func() {
				got, err = svc.Authenticate(context.Background(), tt.token(t))
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Authenticate_RepositoryError(t *testing.T) {
	repo := new(UserRepoMock)
	repo.On("GetUserByID", mock.Anything, int64(1)).Return(nil, errors.New("db down")).Once()
	maker := newMaker(t, time.Hour)
	svc := auth.NewService(repo, maker)

	tok, err := maker.GenerateToken(1, "a@example.com")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), tok)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidToken)
}
