package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const cancellationColumns = `id, subscription_id, user_id, method, status,
	vendor_ref, error, started_at, completed_at`

func scanCancellation(row scanner) (*models.CancellationRequest, error) {
	var (
		r         models.CancellationRequest
		status    string
		vendorRef sql.NullString
		errText   sql.NullString
		completed sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.SubscriptionID, &r.UserID, &r.Method, &status,
		&vendorRef, &errText, &r.StartedAt, &completed); err != nil {
		return nil, err
	}
	r.Status = models.CancelStatus(status)
	if vendorRef.Valid {
		r.VendorRef = &vendorRef.String
	}
	if errText.Valid {
		r.Error = &errText.String
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

// CreateCancellation создаёт попытку отмены в указанном статусе.
func (s *Storage) CreateCancellation(ctx context.Context, userID, subscriptionID int64, method string, status models.CancelStatus) (*models.CancellationRequest, error) {
	const op = "storage.CreateCancellation"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.q(ctx).QueryRowContext(ctx,
		`INSERT INTO cancellation_requests (subscription_id, user_id, method, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+cancellationColumns,
		subscriptionID, userID, method, string(status))
	r, err := scanCancellation(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return r, nil
}

// GetCancellation возвращает попытку отмены по ID.
func (s *Storage) GetCancellation(ctx context.Context, id int64) (*models.CancellationRequest, error) {
	const op = "storage.GetCancellation"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+cancellationColumns+` FROM cancellation_requests WHERE id = $1`, id)
	r, err := scanCancellation(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return r, nil
}

// LatestCancellation возвращает последнюю попытку отмены подписки.
func (s *Storage) LatestCancellation(ctx context.Context, subscriptionID int64) (*models.CancellationRequest, error) {
	const op = "storage.LatestCancellation"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+cancellationColumns+` FROM cancellation_requests
		 WHERE subscription_id = $1
		 ORDER BY id DESC
		 LIMIT 1`, subscriptionID)
	r, err := scanCancellation(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return r, nil
}

// SetCancellationVendorRef сохраняет идентификатор запроса на стороне продавца.
func (s *Storage) SetCancellationVendorRef(ctx context.Context, id int64, vendorRef string) error {
	const op = "storage.SetCancellationVendorRef"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE cancellation_requests SET vendor_ref = $1 WHERE id = $2`, vendorRef, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}

// FinishCancellation переводит попытку в конечный статус и фиксирует время завершения.
// errText сохраняется только для статуса failed.
func (s *Storage) FinishCancellation(ctx context.Context, id int64, status models.CancelStatus, errText string, at time.Time) error {
	const op = "storage.FinishCancellation"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	var errArg sql.NullString
	if status == models.CancelFailed {
		errArg = sql.NullString{String: errText, Valid: true}
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE cancellation_requests
		 SET status = $1, error = $2, completed_at = $3
		 WHERE id = $4`, string(status), errArg, at, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}
