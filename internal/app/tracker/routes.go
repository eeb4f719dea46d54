// Package tracker собирает HTTP-приложение трекера подписок.
package tracker

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Описание API для Swagger UI.
	_ "github.com/magabrotheeeer/subscription-tracker/docs"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/approval/decide"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/auth/signup"
	cancelstart "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/cancellation/start"
	cancelstatus "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/cancellation/status"
	eventlist "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/event/list"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/health"
	institutionlink "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/institution/link"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/plaid/exchange"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/plaid/linktoken"
	sublist "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/remove"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/scan"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/scanreal"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/upcoming"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/approval"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/auth"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/cancellation"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/events"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/link"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/subscription"
)

// Services — сервисы, которые обслуживают маршруты API.
type Services struct {
	Auth          *auth.Service
	Subscriptions *subscription.Service
	Approvals     *approval.Service
	Cancellations *cancellation.Service
	Events        *events.Service
	Link          *link.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services, m *metrics.Metrics, gatherer prometheus.Gatherer) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		m.Middleware,
	)

	r.Get("/health", health.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.ServeHTTP)
		r.Post("/auth/signup", signup.New(logger, svc.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, svc.Auth).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit.RPS, cfg.RateLimit.Burst))

			r.Post("/subscriptions/scan", scan.New(logger, svc.Subscriptions).ServeHTTP)
			r.Post("/subscriptions/scan_real", scanreal.New(logger, svc.Subscriptions).ServeHTTP)
			r.Get("/subscriptions", sublist.New(logger, svc.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/upcoming", upcoming.New(logger, svc.Subscriptions).ServeHTTP)
			r.Delete("/subscriptions/{id}", remove.New(logger, svc.Subscriptions).ServeHTTP)

			r.Post("/approvals", decide.New(logger, svc.Approvals).ServeHTTP)

			r.Post("/cancellations/start", cancelstart.New(logger, svc.Cancellations).ServeHTTP)
			r.Get("/cancellations/status/{subscription_id}", cancelstatus.New(logger, svc.Cancellations).ServeHTTP)

			r.Get("/events", eventlist.New(logger, svc.Events).ServeHTTP)

			r.Post("/plaid/link_token", linktoken.New(logger, svc.Link).ServeHTTP)
			r.Post("/plaid/exchange", exchange.New(logger, svc.Link).ServeHTTP)
			r.Post("/institutions/link", institutionlink.New(logger, svc.Link).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
