package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_DomainCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Scan("real", 2)
	m.Scan("fake", 3)
	m.Approval("deny")
	m.Approval("deny")
	m.Cancellation("started")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("real")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.detected))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.approvals.WithLabelValues("deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations.WithLabelValues("started")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Scan("fake", 1)
		m.Approval("approve")
		m.Cancellation("failed")
	})
}

func TestMetrics_Middleware(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/items/{id}", http.MethodGet, "418")))
}
