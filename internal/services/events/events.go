// Package events отдаёт журнал действий пользователя.
package events

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Repository читает журнал событий.
type Repository interface {
	ListEvents(ctx context.Context, userID int64, limit int) ([]models.Event, error)
}

// Service возвращает события пользователя.
type Service struct {
	repo Repository
}

// NewService создаёт Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List возвращает последние события, новые первыми. limit приводится к [1, MaxLimit],
// нулевой limit означает DefaultLimit.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]models.Event, error) {
	const op = "events.List"
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	events, err := s.repo.ListEvents(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}
