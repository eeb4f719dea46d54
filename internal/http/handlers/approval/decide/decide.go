// Package decide реализует HTTP-обработчик решения пользователя по подписке.
package decide

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
	"github.com/magabrotheeeer/subscription-tracker/internal/services/approval"
)

// Request — решение по подписке.
type Request struct {
	SubscriptionID int64  `json:"subscription_id" validate:"gt=0"`
	Decision       string `json:"decision" validate:"required"`
}

// Service описывает сохранение решения.
type Service interface {
	Decide(ctx context.Context, userID, subscriptionID int64, decision string) (*approval.Result, error)
}

// Handler обрабатывает POST /approvals.
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
// @Summary Решение по подписке
// @Description Сохраняет решение approve или deny. При deny подписка переводится в canceling и запускается автоматическая отмена; ошибка автозапуска возвращается в поле error.
// @Tags Approvals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Решение"
// @Success 200 {object} response.Response{data=approval.Result} "Решение сохранено"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или решение"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Router /approvals [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.approval.decide"

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

	res, err := h.service.Decide(r.Context(), userID, req.SubscriptionID, req.Decision)
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to save decision", sl.Err(err), slog.Int64("subscription_id", req.SubscriptionID))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("decision saved",
		slog.Int64("subscription_id", res.SubscriptionID),
		slog.String("decision", res.Decision),
		slog.Bool("cancel_started", res.CancelStarted),
	)
	render.JSON(w, r, response.OK(res))
}
