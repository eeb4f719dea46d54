// Package scanreal реализует HTTP-обработчик сканирования транзакций провайдера.
package scanreal

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Service описывает сканирование по данным провайдера.
type Service interface {
	ScanProvider(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// Handler обрабатывает POST /subscriptions/scan_real.
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
// @Summary Сканирование транзакций
// @Description Загружает транзакции из подключенного банка, находит регулярные платежи и возвращает подписки пользователя.
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response "Найденные подписки"
// @Failure 400 {object} response.ErrorResponse "Нет подключенного банка"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Failure 502 {object} response.ErrorResponse "Ошибка провайдера"
// @Router /subscriptions/scan_real [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.scanreal"

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

	subs, err := h.service.ScanProvider(r.Context(), userID)
	if err != nil {
		code, msg := response.FromError(err)
		if code < http.StatusInternalServerError {
			log.Warn("provider scan rejected", sl.Err(err), slog.Int("status", code))
		} else {
			log.Error("provider scan failed", sl.Err(err))
		}
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("provider scan completed", slog.Int("count", len(subs)))
	render.JSON(w, r, response.OK(subs))
}
