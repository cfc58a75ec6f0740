// Package server exposes the running loop over HTTP for inspection.
//
// All endpoints are read-only. Live endpoints read the snapshot the loop
// published for its last frame; journal endpoints are mounted only when a
// journal is attached.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/luma/internal/journal"
	"github.com/roach88/luma/internal/runtime"
)

// Snapshotter publishes the latest frame snapshot. *runtime.Loop
// implements it. Latest returns nil before the first frame.
type Snapshotter interface {
	Latest() *runtime.Snapshot
}

// Server is the luma inspection API server.
type Server struct {
	loop    Snapshotter
	journal *journal.Journal
	logger  *slog.Logger
	router  chi.Router
	version string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithJournal mounts the /api/sessions routes backed by j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a server for loop.
func New(loop Snapshotter, version string, opts ...Option) *Server {
	s := &Server{
		loop:    loop,
		logger:  slog.Default(),
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/frames/latest", s.handleLatestFrame)
		r.Get("/facts", s.handleFacts)
		r.Get("/errors", s.handleErrors)
		r.Get("/markers", s.handleMarkers)

		if s.journal != nil {
			r.Get("/sessions", s.handleSessions)
			r.Get("/sessions/{sessionID}/frames", s.handleSessionFrames)
			r.Get("/sessions/{sessionID}/frames/{seq}", s.handleSessionFrame)
		}
	})

	s.router = r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
