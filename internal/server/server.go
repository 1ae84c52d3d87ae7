// Package server exposes the operational HTTP surface: liveness, Prometheus
// metrics, and a read-only view of the book for operators. It never accepts
// trading commands; the decision loop is the only writer.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int
	// Mode is reported on the status endpoint ("paper" or "live").
	Mode string
}

// BookView is the read-only slice of ledger state the server renders.
type BookView interface {
	Snapshot() []domain.Position
	TotalExposure() float64
}

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the operational HTTP server.
type Server struct {
	httpServer *http.Server
	book       BookView
	checks     map[string]Pinger
	mode       string
	startedAt  time.Time
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. checks maps a
// backend name ("postgres", "redis") to its connectivity probe; nil entries
// are skipped.
func NewServer(cfg Config, book BookView, checks map[string]Pinger, registry *prometheus.Registry, logger *slog.Logger) *Server {
	s := &Server{
		book:      book,
		checks:    checks,
		mode:      cfg.Mode,
		startedAt: time.Now().UTC(),
		logger:    logger.With(slog.String("component", "server")),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	if registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. It blocks until the server errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// handleHealth pings every registered backend. Any failed probe degrades the
// response to 503 so an orchestrator restarts the process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	backends := make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			backends[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		backends[name] = "ok"
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"backends":  backends,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

// handleStatus reports mode, uptime, and book totals.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":             s.mode,
		"uptime_seconds":   int64(time.Since(s.startedAt).Seconds()),
		"open_positions":   len(s.book.Snapshot()),
		"exposure_dollars": s.book.TotalExposure(),
	})
}

// handlePositions renders the current book.
func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions := s.book.Snapshot()
	out := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		out = append(out, map[string]any{
			"ticker":          p.Ticker,
			"contracts":       p.Contracts,
			"avg_price_cents": p.AvgPriceCents,
			"last_edge_pct":   p.LastEdge,
			"expiry":          p.ExpiryTime.UTC().Format(time.RFC3339),
			"opened_at":       p.OpenedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
