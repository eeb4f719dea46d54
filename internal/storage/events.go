package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// AppendEvent добавляет запись в журнал событий пользователя.
// payload сериализуется в JSON; nil сохраняется как NULL.
func (s *Storage) AppendEvent(ctx context.Context, userID int64, eventType, message string, payload any) error {
	const op = "storage.AppendEvent"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO event_logs (user_id, type, message, payload) VALUES ($1, $2, $3, $4)`,
		userID, eventType, message, nullableJSON(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullableJSON(raw []byte) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

// ListEvents возвращает последние события пользователя, новые первыми.
func (s *Storage) ListEvents(ctx context.Context, userID int64, limit int) ([]models.Event, error) {
	const op = "storage.ListEvents"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT id, user_id, type, message, payload, created_at
		 FROM event_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.Event, 0)
	for rows.Next() {
		var (
			e       models.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Message, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
