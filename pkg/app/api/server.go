// Package api exposes the operational HTTP surface: health, readiness,
// aggregate stats, and Prometheus metrics. It carries no payment operations.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/promptcash/paybot/pkg/app/httpserver"
	"github.com/promptcash/paybot/pkg/config"
	"github.com/promptcash/paybot/pkg/ledger"
)

const requestTimeout = 30 * time.Second

// statsWindow bounds the /stats aggregation to the trailing month.
const statsWindow = 30 * 24 * time.Hour

// Pinger is the ledger surface the monitoring server needs.
type Pinger interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context, from, to time.Time) (*ledger.Stats, error)
}

// Server is the monitoring HTTP server.
type Server struct {
	cfg    config.MonitoringConfig
	store  Pinger
	logger *zap.Logger
}

func NewServer(cfg config.MonitoringConfig, store Pinger, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, store: store, logger: logger}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpserver.ServeAndWait(ctx, s.logger, srv, s.cfg.ShutdownTimeout)
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", s.handleReady)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("Readiness check failed", zap.Error(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	stats, err := s.store.Stats(r.Context(), now.Add(-statsWindow), now)
	if err != nil {
		s.logger.Error("Stats query failed", zap.Error(err))
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Warn("Stats encode failed", zap.Error(err))
	}
}
