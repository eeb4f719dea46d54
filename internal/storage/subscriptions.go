package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const subscriptionColumns = `id, user_id, merchant, plan, amount, interval,
	next_renewal_at, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		sub     models.Subscription
		plan    sql.NullString
		renewal sql.NullTime
		status  string
	)
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Merchant, &plan, &sub.Amount, &sub.Interval,
		&renewal, &status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if plan.Valid {
		sub.Plan = &plan.String
	}
	if renewal.Valid {
		t := renewal.Time
		sub.NextRenewalAt = &t
	}
	sub.Status = models.Status(status)
	return &sub, nil
}

// UpsertSubscription создаёт подписку или обновляет существующую подписку
// того же пользователя у того же продавца. Статус всегда становится active.
// План обновляется, только если передан.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.UpsertSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO subscriptions (user_id, merchant, plan, amount, interval, next_renewal_at, status)
			  VALUES ($1, $2, $3, $4, $5, $6, 'active')
			  ON CONFLICT (user_id, merchant) DO UPDATE
			  SET plan = COALESCE(EXCLUDED.plan, subscriptions.plan),
			      amount = EXCLUDED.amount,
			      interval = EXCLUDED.interval,
			      next_renewal_at = EXCLUDED.next_renewal_at,
			      status = 'active',
			      updated_at = now()
			  RETURNING ` + subscriptionColumns
	row := s.q(ctx).QueryRowContext(ctx, query,
		sub.UserID, sub.Merchant, sub.Plan, sub.Amount, sub.Interval, sub.NextRenewalAt)
	out, err := scanSubscription(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return out, nil
}

// ListSubscriptions возвращает все подписки пользователя в порядке создания.
func (s *Storage) ListSubscriptions(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.querySubscriptions(ctx, op,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY id`, userID)
}

// ListUpcoming возвращает подписки в статусах active и canceling, которые
// продлеваются не позже before, по возрастанию даты продления.
func (s *Storage) ListUpcoming(ctx context.Context, userID int64, before time.Time) ([]models.Subscription, error) {
	const op = "storage.ListUpcoming"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.querySubscriptions(ctx, op,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1
		   AND status IN ('active', 'canceling')
		   AND next_renewal_at IS NOT NULL
		   AND next_renewal_at <= $2
		 ORDER BY next_renewal_at ASC, id`, userID, before)
}

func (s *Storage) querySubscriptions(ctx context.Context, op, query string, args ...any) ([]models.Subscription, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetSubscription возвращает подписку пользователя. Чужая или отсутствующая
// подписка возвращает models.ErrNotFound.
func (s *Storage) GetSubscription(ctx context.Context, userID, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// GetSubscriptionByID возвращает подписку без проверки владельца.
// Используется фоновыми задачами.
func (s *Storage) GetSubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return sub, nil
}

// UpdateSubscriptionStatus меняет статус подписки.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id int64, status models.Status) error {
	const op = "storage.UpdateSubscriptionStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%s: %w: status %q", op, models.ErrInvalidInput, status)
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = now() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}

// DeleteSubscription удаляет подписку пользователя вместе с попытками отмены.
// Решения остаются с пустой ссылкой на подписку.
func (s *Storage) DeleteSubscription(ctx context.Context, userID, id int64) error {
	const op = "storage.DeleteSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}

// ListRenewalsDue возвращает активные подписки всех пользователей, которые
// продлеваются в интервале (from, to] и ещё не получили напоминание об этом продлении.
func (s *Storage) ListRenewalsDue(ctx context.Context, from, to time.Time) ([]models.RenewalInfo, error) {
	const op = "storage.ListRenewalsDue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT s.id, u.email, s.merchant, s.amount, s.next_renewal_at
		 FROM subscriptions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.status = 'active'
		   AND s.next_renewal_at > $1
		   AND s.next_renewal_at <= $2
		   AND s.reminder_sent_for IS DISTINCT FROM s.next_renewal_at
		 ORDER BY s.next_renewal_at, s.id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.RenewalInfo, 0)
	for rows.Next() {
		var info models.RenewalInfo
		if err := rows.Scan(&info.SubscriptionID, &info.Email, &info.Merchant, &info.Amount, &info.NextRenewalAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkReminderSent запоминает, что напоминание о продлении renewalAt отправлено.
func (s *Storage) MarkReminderSent(ctx context.Context, id int64, renewalAt time.Time) error {
	const op = "storage.MarkReminderSent"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE subscriptions SET reminder_sent_for = $1 WHERE id = $2`, renewalAt, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}
