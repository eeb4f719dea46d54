package storage

import (
	"context"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const institutionColumns = `id, user_id, provider, status, access_token_ref, created_at`

// CreateInstitution сохраняет подключение к банку в статусе linked.
func (s *Storage) CreateInstitution(ctx context.Context, userID int64, provider, accessTokenRef string) (*models.InstitutionConnection, error) {
	const op = "storage.CreateInstitution"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var c models.InstitutionConnection
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO institution_connections (user_id, provider, status, access_token_ref)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+institutionColumns,
		userID, provider, models.ConnectionLinked, accessTokenRef).
		Scan(&c.ID, &c.UserID, &c.Provider, &c.Status, &c.AccessTokenRef, &c.CreatedAt)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return &c, nil
}

// LatestInstitution возвращает последнее подключение пользователя к провайдеру.
func (s *Storage) LatestInstitution(ctx context.Context, userID int64, provider string) (*models.InstitutionConnection, error) {
	const op = "storage.LatestInstitution"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var c models.InstitutionConnection
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+institutionColumns+` FROM institution_connections
		 WHERE user_id = $1 AND provider = $2 AND status = $3
		 ORDER BY id DESC
		 LIMIT 1`, userID, provider, models.ConnectionLinked).
		Scan(&c.ID, &c.UserID, &c.Provider, &c.Status, &c.AccessTokenRef, &c.CreatedAt)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return &c, nil
}
