package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pverhoeven/warden/pkg/health"
	"github.com/pverhoeven/warden/pkg/journal"
	"github.com/pverhoeven/warden/pkg/ratelimit"
)

// Status is the summary served at /status
type Status struct {
	Liveness      health.Snapshot `json:"liveness"`
	PID           int             `json:"pid"`
	StartedAt     time.Time       `json:"started_at"`
	UptimeSeconds float64         `json:"uptime_seconds"`
}

// Options configures the API server
type Options struct {
	Addr    string
	Status  func() Status
	Journal journal.Journal
	Metrics http.Handler
	Limiter *ratelimit.Limiter
}

// Server exposes the supervisor's observability surface: a binary
// health signal for the orchestrator, a JSON status summary, journal
// history, and Prometheus metrics.
type Server struct {
	opts   Options
	router *mux.Router
	srv    *http.Server
}

// NewServer creates the API server
func NewServer(opts Options) *Server {
	s := &Server{opts: opts}

	router := mux.NewRouter()
	if opts.Limiter != nil {
		router.Use(opts.Limiter.Middleware(ratelimit.ClientKey))
	}

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/probes", s.handleProbes).Methods("GET")
	router.HandleFunc("/events", s.handleEvents).Methods("GET")
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods("GET")
	}

	s.router = router
	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleHealth serves the orchestrator-facing binary signal: 200 while
// starting or healthy, 503 when unhealthy
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.opts.Status()
	w.Header().Set("Content-Type", "text/plain")

	if status.Liveness.Status == health.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "unhealthy")
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Status())
}

func (s *Server) handleProbes(w http.ResponseWriter, r *http.Request) {
	probes, err := s.opts.Journal.RecentProbes(parseLimit(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if probes == nil {
		probes = []journal.ProbeRecord{}
	}
	writeJSON(w, http.StatusOK, probes)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.opts.Journal.RecentEvents(parseLimit(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []journal.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
