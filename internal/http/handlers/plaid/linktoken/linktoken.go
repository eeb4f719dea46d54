// Package linktoken реализует HTTP-обработчик выдачи токена для виджета Plaid Link.
package linktoken

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// Service описывает получение link token.
type Service interface {
	LinkToken(ctx context.Context, userID int64) (string, error)
}

// Handler обрабатывает POST /plaid/link_token.
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
// @Summary Link token
// @Description Запрашивает у Plaid токен для подключения банка.
// @Tags Plaid
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response "link_token"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Провайдер не настроен"
// @Failure 502 {object} response.ErrorResponse "Ошибка провайдера"
// @Router /plaid/link_token [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plaid.linktoken"

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

	token, err := h.service.LinkToken(r.Context(), userID)
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to create link token", sl.Err(err))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OK(map[string]string{"link_token": token}))
}
