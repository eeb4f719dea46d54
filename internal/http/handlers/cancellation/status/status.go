// Package status реализует HTTP-обработчик состояния отмены подписки.
package status

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/cancellation"
)

// Service описывает получение состояния отмены.
type Service interface {
	Status(ctx context.Context, userID, subscriptionID int64) (*cancellation.Status, error)
}

// Handler обрабатывает GET /cancellations/status/{subscription_id}.
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
// @Summary Состояние отмены
// @Description Возвращает статус подписки и её последнюю попытку отмены (null, если отмен не было).
// @Tags Cancellations
// @Produce json
// @Security BearerAuth
// @Param subscription_id path int true "ID подписки"
// @Success 200 {object} response.Response{data=cancellation.Status} "Состояние"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Router /cancellations/status/{subscription_id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cancellation.status"

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

	raw := chi.URLParam(r, "subscription_id")
	subID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || subID <= 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid subscription id"))
		return
	}

	st, err := h.service.Status(r.Context(), userID, subID)
	if err != nil {
		code, msg := response.FromError(err)
		if code >= http.StatusInternalServerError {
			log.Error("failed to get cancellation status", sl.Err(err))
		}
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OK(st))
}
