// Package link реализует HTTP-обработчик подключения банка без провайдера.
package link

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

// Service описывает заглушку подключения.
type Service interface {
	StubLink(ctx context.Context, userID int64, provider string) (*models.InstitutionConnection, error)
}

// Handler обрабатывает POST /institutions/link.
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
// @Summary Подключение банка (заглушка)
// @Description Сохраняет подключение с фиктивным токеном доступа.
// @Tags Institutions
// @Produce json
// @Security BearerAuth
// @Param provider query string false "Провайдер" default(plaid)
// @Success 200 {object} response.Response "Подключено"
// @Failure 401 {object} response.ErrorResponse "Не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Router /institutions/link [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.institution.link"

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

	conn, err := h.service.StubLink(r.Context(), userID, r.URL.Query().Get("provider"))
	if err != nil {
		code, msg := response.FromError(err)
		log.Error("failed to link institution", sl.Err(err))
		render.Status(r, code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("institution linked", slog.String("provider", conn.Provider))
	render.JSON(w, r, response.OK(map[string]string{"status": models.ConnectionLinked}))
}
