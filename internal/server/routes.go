package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/luma/internal/ir"
	"github.com/roach88/luma/internal/journal"
	"github.com/roach88/luma/internal/runtime"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"journal": s.journal != nil,
	}
	if snap := s.loop.Latest(); snap != nil {
		body["frame"] = snap.Seq
	}
	writeJSON(w, http.StatusOK, body)
}

// latest writes 503 and returns nil when no frame has run yet.
func (s *Server) latest(w http.ResponseWriter) *runtime.Snapshot {
	snap := s.loop.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no frame yet")
	}
	return snap
}

func (s *Server) handleLatestFrame(w http.ResponseWriter, r *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type factView struct {
	Seq   int64  `json:"seq"`
	Owner int    `json:"owner"`
	Hash  string `json:"hash"`
	Body  string `json:"body"`
}

// handleFacts lists the facts of the latest frame. Optional filters:
// q (substring of the body) and owner (program id).
func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}

	q := r.URL.Query().Get("q")
	owner, filterOwner := 0, false
	if v := r.URL.Query().Get("owner"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "owner must be an integer")
			return
		}
		owner, filterOwner = n, true
	}

	facts := []factView{}
	for _, f := range snap.Facts {
		if filterOwner && f.Owner != owner {
			continue
		}
		body := f.Body()
		if q != "" && !strings.Contains(body, q) {
			continue
		}
		facts = append(facts, viewFact(f, body))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frame": snap.Seq,
		"count": len(facts),
		"facts": facts,
	})
}

func viewFact(f ir.Statement, body string) factView {
	return factView{Seq: f.Seq, Owner: f.Owner, Hash: f.Hash, Body: body}
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}
	errs := snap.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frame":  snap.Seq,
		"errors": errs,
	})
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	snap := s.latest(w)
	if snap == nil {
		return
	}
	markers := snap.Markers
	if markers == nil {
		markers = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frame":   snap.Seq,
		"markers": markers,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.journal.Sessions(r.Context())
	if err != nil {
		s.internalError(w, "list sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current":  s.journal.Session(),
		"sessions": sessions,
	})
}

func (s *Server) handleSessionFrames(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	frames, err := s.journal.Frames(r.Context(), sessionID)
	if err != nil {
		s.internalError(w, "list frames", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": sessionID,
		"frames":  frames,
	})
}

func (s *Server) handleSessionFrame(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "seq must be an integer")
		return
	}

	frame, err := s.journal.Frame(r.Context(), sessionID, seq)
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "read frame", err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("server request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, op+": "+err.Error())
}
