// Package healthsrv поднимает gRPC-сервер со стандартным сервисом grpc.health.v1.
//
// Статус сервиса обновляется по результату периодической проверки зависимостей
// (например, доступности базы данных).
package healthsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// ServiceName — имя сервиса, под которым публикуется статус.
const ServiceName = "subscription-tracker"

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server — gRPC-сервер проверки здоровья.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	pinger     Pinger
	interval   time.Duration
	log        *slog.Logger
}

// New открывает listener на addr. Нулевой pinger означает постоянный SERVING.
func New(addr string, pinger Pinger, interval time.Duration, log *slog.Logger) (*Server, error) {
	const op = "healthsrv.New"

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpcServer: gs,
		health:     hs,
		listener:   lis,
		pinger:     pinger,
		interval:   interval,
		log:        log,
	}, nil
}

// Addr возвращает фактический адрес listener.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Run обслуживает запросы до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	s.check(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gRPC health server listening", slog.String("address", s.Addr()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Server) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			s.log.Warn("dependency check failed", sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
