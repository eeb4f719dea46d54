// Package auth регистрирует пользователей, выдаёт токены и проверяет их.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/password"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

var (
	// ErrInvalidToken возвращается для любого токена, по которому нельзя
	// установить существующего пользователя.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLen = 6

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenMaker выпускает и разбирает токены.
type TokenMaker interface {
	GenerateToken(userID int64, email string) (string, error)
	ParseToken(tokenStr string) (*jwt.Claims, error)
}

// Service отвечает за регистрацию, вход и проверку токенов.
type Service struct {
	users  UserRepository
	tokens TokenMaker
}

// NewService создаёт Service.
func NewService(users UserRepository, tokens TokenMaker) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register создаёт пользователя и возвращает токен доступа.
// Занятый email возвращает models.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "auth.Register"

	email, err := normalizeEmail(email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(rawPassword) < minPasswordLen {
		return "", fmt.Errorf("%s: %w: password must be at least %d characters", op, models.ErrInvalidInput, minPasswordLen)
	}

	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, models.ErrInvalidInput, err)
	}
	id, err := s.users.CreateUser(ctx, email, hash)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.tokens.GenerateToken(id, email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Login проверяет пароль и возвращает токен доступа.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "auth.Login"

	email, err := normalizeEmail(email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Authenticate проверяет токен и находит пользователя.
//
// Пользователь определяется по claim user_id, затем по subject: числовой
// subject считается ID, остальные считаются email. Если subject пуст,
// используется claim email. Любая неудача возвращает ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	var user *models.User
	sub := strings.TrimSpace(claims.Subject)
	switch {
	case claims.UserID != nil:
		user, err = s.users.GetUserByID(ctx, *claims.UserID)
	case sub != "":
		if id, convErr := strconv.ParseInt(sub, 10, 64); convErr == nil {
			user, err = s.users.GetUserByID(ctx, id)
		} else {
			user, err = s.users.GetUserByEmail(ctx, sub)
		}
	case claims.Email != "":
		user, err = s.users.GetUserByEmail(ctx, claims.Email)
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: invalid email", models.ErrInvalidInput)
	}
	return email, nil
}
