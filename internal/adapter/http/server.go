// Package http exposes health, metrics, and the read-only conditions API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parkcheck/conditions-engine/internal/domain"
	"github.com/parkcheck/conditions-engine/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Reader is the storage surface the API serves from.
type Reader interface {
	ListSites(ctx context.Context) ([]domain.Site, error)
	GetConditions(ctx context.Context, slug string) (*domain.SiteConditions, error)
	GetEstimates(ctx context.Context) (*domain.DryEstimates, error)
	GetLedger(ctx context.Context) (*domain.StatsLedger, error)
}

// Server exposes health, readiness, metrics, and conditions endpoints.
type Server struct {
	httpServer *http.Server
	reader     Reader
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, ready ReadinessChecker, reader Reader, logger *slog.Logger, clock clockwork.Clock) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reader: reader,
		logger: logger,
		clock:  clock,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /conditions", s.handleConditionsIndex)
	mux.HandleFunc("GET /conditions/{slug}", s.handleConditions)
	mux.HandleFunc("GET /estimates", s.handleEstimates)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleConditionsIndex lists every site with its current composite summary.
func (s *Server) handleConditionsIndex(w http.ResponseWriter, r *http.Request) {
	sites, err := s.reader.ListSites(r.Context())
	if err != nil {
		s.serverError(w, "list sites", err)
		return
	}

	type entry struct {
		Slug            string         `json:"slug"`
		Name            string         `json:"name"`
		CompositeStatus *domain.Status `json:"compositeStatus"`
		ReportCount     int            `json:"reportCount"`
		LastReportAt    *time.Time     `json:"lastReportAt"`
		ActiveHazards   []string       `json:"activeHazards,omitempty"`
	}

	out := make([]entry, 0, len(sites))
	for _, site := range sites {
		e := entry{Slug: site.Slug, Name: site.Name}
		cond, err := s.reader.GetConditions(r.Context(), site.Slug)
		if err == nil {
			e.CompositeStatus = cond.CompositeStatus
			e.ReportCount = cond.ReportCount
			e.LastReportAt = cond.LastReportAt
			e.ActiveHazards = cond.ActiveHazards
		} else if !errors.Is(err, store.ErrNotFound) {
			s.serverError(w, "load conditions", err)
			return
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConditions(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	cond, err := s.reader.GetConditions(r.Context(), slug)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown site"})
		return
	}
	if err != nil {
		s.serverError(w, "load conditions", err)
		return
	}
	writeJSON(w, http.StatusOK, cond)
}

func (s *Server) handleEstimates(w http.ResponseWriter, r *http.Request) {
	est, err := s.reader.GetEstimates(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no estimates computed yet"})
		return
	}
	if err != nil {
		s.serverError(w, "load estimates", err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// handleLeaderboard serves the reputation ranking. ?period=week|month limits
// it to recently active reporters; anything else means all time.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.reader.GetLedger(r.Context())
	if err != nil {
		s.serverError(w, "load ledger", err)
		return
	}

	type entry struct {
		ID          string       `json:"id"`
		Reputation  int          `json:"reputation"`
		Level       domain.Level `json:"level"`
		NextLevelAt *int         `json:"nextLevelAt,omitempty"`
		ProgressPct int          `json:"progressPct"`
		ReportCount int          `json:"reportCount"`
		Streak      int          `json:"streak"`
	}

	ranked := domain.Leaderboard(ledger, r.URL.Query().Get("period"), s.clock.Now().UTC())
	out := make([]entry, 0, len(ranked))
	for _, p := range ranked {
		e := entry{
			ID:          p.ID,
			Reputation:  p.Reputation,
			Level:       p.Level,
			ReportCount: p.ReportCount,
			Streak:      p.Streak,
		}
		_, next, pct := domain.LevelProgress(p.Reputation)
		e.ProgressPct = pct
		if next != nil {
			e.NextLevelAt = &next.MinPoints
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
