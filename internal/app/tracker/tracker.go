package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-tracker/internal/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/grpc/healthsrv"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/secret"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/migrations"
	"github.com/magabrotheeeer/subscription-tracker/internal/plaid"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/approval"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/auth"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/cancellation"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/completion"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/events"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/link"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP API трекера вместе с фоновыми компонентами.
type App struct {
	server     *http.Server
	health     *healthsrv.Server
	logger     *slog.Logger
	db         *storage.Storage
	redis      *cache.Redis
	completion *completion.Scheduler
	amqpConn   *amqp.Connection
	amqpCh     *amqp.Channel
}

// New подключает зависимости и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "tracker.New"

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a := &App{logger: logger, db: db}

	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var c cache.Cache
	if cfg.RedisConnection.AddressRedis != "" {
		if a.redis, err = cache.InitServer(ctx, cfg.RedisConnection); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c = a.redis
	} else {
		logger.Info("redis address not set, using in-memory cache")
		c = cache.NewMemory(cfg.RedisConnection.TTL)
	}

	var publisher cancellation.Publisher = rabbitmq.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		if a.amqpConn, err = rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if a.amqpCh, err = rabbitmq.SetupChannel(a.amqpConn, rabbitmq.NotificationQueues()); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher = rabbitmq.NewPublisher(a.amqpCh)
	} else {
		logger.Info("rabbitmq url not set, notifications disabled")
	}

	plaidClient, err := plaid.NewClient(cfg.Plaid)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sealer, err := secret.NewSealer(cfg.TokenSealKey)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !sealer.Enabled() {
		logger.Warn("token seal key not set, provider tokens are stored unsealed")
	}
	jwtMaker, err := jwt.NewMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.Algorithm, cfg.JWTToken.TokenTTL)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	a.completion = completion.New(logger, 0)

	var adapter cancellation.Adapter
	switch cfg.Cancellation.Adapter {
	case "email":
		adapter = cancellation.NewEmailAdapter(cfg.Cancellation.ResendAPIKey, cfg.Cancellation.EmailFrom, cfg.Cancellation.MerchantContacts)
	default:
		adapter = cancellation.StubAdapter{}
	}

	cancelService := cancellation.NewService(db, adapter, a.completion, publisher, c, m, logger, cfg.Cancellation.CompletionDelay)
	svc := Services{
		Auth: auth.NewService(db, jwtMaker),
		Subscriptions: subscription.NewService(db, c, plaidClient, sealer, m, logger, subscription.Options{
			LookbackDays: cfg.Plaid.LookbackDays,
			CacheTTL:     cfg.RedisConnection.TTL,
		}),
		Approvals:     approval.NewService(db, cancelService, c, m, logger),
		Cancellations: cancelService,
		Events:        events.NewService(db),
		Link:          link.NewService(db, plaidClient, sealer),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svc, m, reg)

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
		WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if cfg.GRPCHealthAddress != "" {
		if a.health, err = healthsrv.New(cfg.GRPCHealthAddress, db, 0, logger); err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	logger.Debug("config loaded", slog.String("config", cfg.String()))
	return a, nil
}

// Run запускает серверы и при отмене ctx корректно их останавливает.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	if a.health != nil {
		go func() {
			if err := a.health.Run(healthCtx); err != nil {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", sl.Err(err))
		if runErr == nil {
			runErr = err
		}
	}
	stopHealth()
	a.completion.Stop()
	a.close()
	return runErr
}

func (a *App) close() {
	if a.amqpCh != nil {
		if err := a.amqpCh.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
