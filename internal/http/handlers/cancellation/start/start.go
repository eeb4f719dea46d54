// Package start реализует HTTP-обработчик запуска отмены подписки.
package start

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Request — параметры запуска отмены. Пустой метод означает auto.
type Request struct {
	SubscriptionID int64  `json:"subscription_id" validate:"gt=0"`
	Method         string `json:"method"`
}

// Result — ответ на запуск отмены.
type Result struct {
	SubscriptionID int64               `json:"subscription_id"`
	RequestID      int64               `json:"request_id"`
	Status         models.CancelStatus `json:"status"`
}

// Service описывает запуск отмены.
type Service interface {
	Start(ctx context.Context, userID, subscriptionID int64, method string) (*models.CancellationRequest, error)
}

// Handler обрабатывает POST /cancellations/start.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запуск отмены подписки
// @Description Создаёт попытку отмены и передаёт её адаптеру. Завершение происходит сразу или после задержки.
// @Tags Cancellations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Подписка и метод (auto или assisted)"
// @Success 200 {object} response.Response{data=Result} "Отмена запущена"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или метод"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Адаптер отмены вернул ошибку"
// @Router /cancellations/start [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.cancellation.start"

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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	cr, err := h.service.Start(r.Context(), userID, req.SubscriptionID, req.Method)
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to start cancellation", sl.Err(err), slog.Int64("subscription_id", req.SubscriptionID))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("cancellation started",
		slog.Int64("subscription_id", cr.SubscriptionID),
		slog.Int64("cancellation_id", cr.ID),
		slog.String("status", string(cr.Status)),
	)
	render.JSON(w, r, response.OK(Result{
		SubscriptionID: cr.SubscriptionID,
		RequestID:      cr.ID,
		Status:         cr.Status,
	}))
}
