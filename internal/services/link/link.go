// Package link подключает банковские счета пользователя через провайдера.
package link

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// StubAccessRef — ссылка на токен, сохраняемая при тестовом подключении.
const StubAccessRef = "fake_ref"

// Repository описывает хранилище, которое использует сервис.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateInstitution(ctx context.Context, userID int64, provider, accessTokenRef string) (*models.InstitutionConnection, error)
	AppendEvent(ctx context.Context, userID int64, eventType, message string, payload any) error
}

// Provider — клиент провайдера банковских данных.
type Provider interface {
	CreateLinkToken(ctx context.Context, clientUserID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, error)
}

// TokenSealer шифрует токен доступа перед сохранением.
type TokenSealer interface {
	Seal(plain string) (string, error)
}

// Service выполняет подключение счетов.
type Service struct {
	repo     Repository
	provider Provider
	sealer   TokenSealer
}

// NewService создаёт Service.
func NewService(repo Repository, provider Provider, sealer TokenSealer) *Service {
	return &Service{repo: repo, provider: provider, sealer: sealer}
}

// LinkToken запрашивает у провайдера токен для виджета подключения.
func (s *Service) LinkToken(ctx context.Context, userID int64) (string, error) {
	const op = "link.LinkToken"
	token, err := s.provider.CreateLinkToken(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Exchange меняет public token на токен доступа и сохраняет подключение.
func (s *Service) Exchange(ctx context.Context, userID int64, publicToken string) (*models.InstitutionConnection, error) {
	const op = "link.Exchange"

	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, fmt.Errorf("%s: %w: public_token is required", op, models.ErrInvalidInput)
	}
	accessToken, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sealed, err := s.sealer.Seal(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := s.save(ctx, userID, models.ProviderPlaid, sealed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, nil
}

// StubLink сохраняет подключение без обращения к провайдеру. Пустой provider означает plaid.
func (s *Service) StubLink(ctx context.Context, userID int64, provider string) (*models.InstitutionConnection, error) {
	const op = "link.StubLink"

	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = models.ProviderPlaid
	}
	conn, err := s.save(ctx, userID, provider, StubAccessRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, nil
}

func (s *Service) save(ctx context.Context, userID int64, provider, ref string) (*models.InstitutionConnection, error) {
	var conn *models.InstitutionConnection
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if conn, err = s.repo.CreateInstitution(ctx, userID, provider, ref); err != nil {
			return err
		}
		return s.repo.AppendEvent(ctx, userID, models.EventInstitutionLinked,
			"Linked "+provider+" account",
			map[string]any{"provider": provider, "connection_id": conn.ID})
	})
	return conn, err
}
