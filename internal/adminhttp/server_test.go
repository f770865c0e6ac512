package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolo-run/wolo/internal/metrics"
)

func newTestServer() *Server {
	collector := metrics.NewWithRegisterer(prometheus.NewRegistry())
	return New(DefaultConfig(), collector)
}

func TestHealthz_ReportsOK(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got == "" {
		t.Fatal("expected a non-empty body")
	}
}

func TestMetrics_ServesPrometheusFormat(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
