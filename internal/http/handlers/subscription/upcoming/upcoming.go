// Package upcoming реализует HTTP-обработчик ближайших продлений.
package upcoming

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

// DefaultDays — горизонт по умолчанию, если параметр days не передан.
const DefaultDays = 7

// Service описывает выборку ближайших продлений.
type Service interface {
	Upcoming(ctx context.Context, userID int64, days int) ([]models.Subscription, error)
}

// Handler обрабатывает GET /subscriptions/upcoming.
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
// @Summary Ближайшие продления
// @Description Возвращает активные и отменяемые подписки, которые продлятся в ближайшие days дней, по возрастанию даты.
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param days query int false "Горизонт в днях" default(7)
// @Success 200 {object} response.Response "Подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректный параметр days"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Router /subscriptions/upcoming [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.upcoming"

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

	days := DefaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			log.Warn("invalid days parameter", slog.String("days", raw))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("days must be an integer"))
			return
		}
		days = n
	}

	subs, err := h.service.Upcoming(r.Context(), userID, days)
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to list upcoming renewals", sl.Err(err))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}

	render.JSON(w, r, response.OK(subs))
}
