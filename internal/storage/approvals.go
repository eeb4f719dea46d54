package storage

import (
	"context"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// CreateApproval сохраняет решение пользователя. Каждый вызов создаёт новую строку.
func (s *Storage) CreateApproval(ctx context.Context, userID, subscriptionID int64, decision string) (*models.Approval, error) {
	const op = "storage.CreateApproval"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	a := models.Approval{UserID: userID, SubscriptionID: subscriptionID, Decision: decision}
	err := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO approvals (user_id, subscription_id, decision)
		 VALUES ($1, $2, $3)
		 RETURNING id, decided_at`,
		userID, subscriptionID, decision).Scan(&a.ID, &a.DecidedAt)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return &a, nil
}

// CountUserApprovals возвращает число решений пользователя, включая решения
// по уже удалённым подпискам.
func (s *Storage) CountUserApprovals(ctx context.Context, userID int64) (int, error) {
	const op = "storage.CountUserApprovals"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var n int
	if err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}

// CountApprovals возвращает число решений по подписке.
func (s *Storage) CountApprovals(ctx context.Context, subscriptionID int64) (int, error) {
	const op = "storage.CountApprovals"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}
	var n int
	if err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE subscription_id = $1`, subscriptionID).Scan(&n); err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}
