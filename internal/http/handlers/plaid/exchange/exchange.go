// Package exchange реализует HTTP-обработчик обмена public token Plaid.
package exchange

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

// Request содержит public token, полученный виджетом.
type Request struct {
	PublicToken string `json:"public_token" validate:"required"`
}

// Service описывает подключение банка.
type Service interface {
	Exchange(ctx context.Context, userID int64, publicToken string) (*models.InstitutionConnection, error)
}

// Handler обрабатывает POST /plaid/exchange.
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
// @Summary Подключение банка
// @Description Меняет public token на токен доступа и сохраняет подключение.
// @Tags Plaid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "public token"
// @Success 200 {object} response.Response "Подключено"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 502 {object} response.ErrorResponse "Ошибка провайдера"
// @Router /plaid/exchange [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plaid.exchange"

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

	conn, err := h.service.Exchange(r.Context(), userID, req.PublicToken)
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to exchange public token", sl.Err(err))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("institution linked", slog.Int64("connection_id", conn.ID))
	render.JSON(w, r, response.OK(map[string]string{"status": models.ConnectionLinked}))
}
