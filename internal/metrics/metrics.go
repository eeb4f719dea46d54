// Package metrics описывает счётчики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics хранит счётчики HTTP-запросов и доменных операций.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	scans         *prometheus.CounterVec
	detected      prometheus.Counter
	approvals     *prometheus.CounterVec
	cancellations *prometheus.CounterVec
}

// New регистрирует счётчики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_scans_total",
			Help: "Subscription scans by kind (fake, real).",
		}, []string{"kind"}),
		detected: f.NewCounter(prometheus.CounterOpts{
			Name: "subscriptions_detected_total",
			Help: "Recurring subscriptions found in provider transactions.",
		}),
		approvals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "approvals_total",
			Help: "Approval decisions by decision.",
		}, []string{"decision"}),
		cancellations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cancellations_total",
			Help: "Cancellation workflow transitions by result (started, failed, completed).",
		}, []string{"result"}),
	}
}

// Scan учитывает сканирование подписок.
func (m *Metrics) Scan(kind string, detected int) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(kind).Inc()
	m.detected.Add(float64(detected))
}

// Approval учитывает решение пользователя.
func (m *Metrics) Approval(decision string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(decision).Inc()
}

// Cancellation учитывает переход процесса отмены.
func (m *Metrics) Cancellation(result string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(result).Inc()
}

// Middleware считает запросы по шаблону маршрута chi.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
