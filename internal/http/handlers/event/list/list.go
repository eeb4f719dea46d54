// Package list реализует HTTP-обработчик журнала событий пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Service описывает чтение журнала событий.
type Service interface {
	List(ctx context.Context, userID int64, limit int) ([]models.Event, error)
}

// Handler обрабатывает GET /events.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Журнал событий
// @Description Возвращает последние события пользователя, новые первыми. limit ограничивается диапазоном 1..200.
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество событий" default(50)
// @Success 200 {object} response.Response "События"
// @Failure 400 {object} response.ErrorResponse "Некорректный limit"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Router /events [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.event.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	// 0 — лимит по умолчанию сервиса.
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("limit must be an integer"))
			return
		}
		limit = n
	}

	events, err := h.service.List(r.Context(), userID, limit)
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to list events", sl.Err(err))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	render.JSON(w, r, response.OK(events))
}
