package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rallylog/rallylog/internal/domain"
)

// ─── Scoreboard ─────────────────────────────────────────────────────────────

// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.tracker.Status(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Points ─────────────────────────────────────────────────────────────────

// pointRequest is the body of POST /api/points. The outcome is matched
// case-insensitively.
type pointRequest struct {
	Outcome      string   `json:"outcome"`
	StrokeTokens []string `json:"strokeTokens"`
	ServeType    string   `json:"serveType,omitempty"`
	ReceiveType  string   `json:"receiveType,omitempty"`
	RallyTypes   []string `json:"rallyTypes,omitempty"`
}

// POST /api/points
func (s *Server) handleLogPoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	rec, err := s.tracker.LogPoint(r.Context(), domain.PointInput{
		Outcome:      outcome,
		StrokeTokens: req.StrokeTokens,
		ServeType:    domain.StringPtr(req.ServeType),
		ReceiveType:  domain.StringPtr(req.ReceiveType),
		RallyTypes:   req.RallyTypes,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// POST /api/points/undo
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.tracker.UndoLast(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /api/points?limit=N
func (s *Server) handleListPoints(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	points := s.tracker.History(r.Context(), limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

// ─── Games & Matches ────────────────────────────────────────────────────────

// POST /api/games
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.tracker.StartNewGame(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// POST /api/match/reset
func (s *Server) handleResetMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.ResetMatch(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.handleStatus(w, r)
}

// POST /api/match/end
func (s *Server) handleEndMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.EndMatch(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// POST /api/sides/toggle
func (s *Server) handleToggleSides(w http.ResponseWriter, r *http.Request) {
	s.tracker.ToggleSides()
	s.handleStatus(w, r)
}

// GET /api/matches
func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.Matches(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": list,
		"count":   len(list),
	})
}

// GET /api/matches/{id}
func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.tracker.Match(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DELETE /api/matches/{id}
func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Sync ───────────────────────────────────────────────────────────────────

// POST /api/sync?push=true
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	push, _ := strconv.ParseBool(r.URL.Query().Get("push"))
	res, err := s.tracker.Sync(r.Context(), push)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
