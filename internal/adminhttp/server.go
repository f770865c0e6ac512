// Package adminhttp is a tiny opt-in HTTP surface for operational
// enrichment: Prometheus scraping and a liveness probe. It is not part of
// the documented CLI contract; this is pure ops sugar one
// process may start alongside a long-running `wolo --coop` or `--repl`
// run, never wired into the agent loop itself and never exposing session
// content.
//
// The surface is two read-only routes behind the usual chi middleware
// stack (RequestID/Logger/Recoverer/RealIP/CORS).
package adminhttp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolo-run/wolo/internal/metrics"
)

// Config holds the admin server's listen options.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig binds loopback-only on port 9090
// (admin surface has its own addr flag so it never collides with a
// provider's local listener).
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:9090",
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the admin HTTP server.
type Server struct {
	cfg     Config
	router  *chi.Mux
	httpSrv *http.Server
	metrics *metrics.Collector
}

// New builds an admin server backed by collector, wired with the same
// middleware stack.
func New(cfg Config, collector *metrics.Collector) *Server {
	r := chi.NewRouter()

	s := &Server{cfg: cfg, router: r, metrics: collector}

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", s.handleHealthz)

	return s
}

// handleHealthz reports process liveness and the number of sessions with
// an in-progress agent loop; it never serves message or tool content.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","active_sessions":%d}`, s.metrics.ActiveSessionCount())
}

// Start listens and serves until the process exits or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
