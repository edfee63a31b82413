// Package api provides the local HTTP server for rallylog: the scoreboard,
// point logging and match history for a UI, plus a live sync status feed.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rallylog/rallylog/internal/app/tracker"
	"github.com/rallylog/rallylog/internal/domain"
)

// Version is reported by /api/version.
var Version = "0.1.0"

// Server is the rallylog HTTP API server.
type Server struct {
	tracker        *tracker.Tracker
	log            logrus.FieldLogger
	metricsEnabled bool
	syncHub        *SyncHub // Live sync status SSE feed (nil if not set)
}

// NewServer creates a new API server.
func NewServer(tr *tracker.Tracker, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{tracker: tr, log: log.WithField("component", "api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetSyncHub sets the live sync status hub.
func (s *Server) SetSyncHub(h *SyncHub) { s.syncHub = h }

// SyncHub returns the live sync status hub.
func (s *Server) SyncHub() *SyncHub { return s.syncHub }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"version": Version,
			})
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", s.handleStatus)

			r.Get("/points", s.handleListPoints)
			r.Post("/points", s.handleLogPoint)
			r.Post("/points/undo", s.handleUndo)

			r.Post("/games", s.handleNewGame)
			r.Post("/match/reset", s.handleResetMatch)
			r.Post("/match/end", s.handleEndMatch)
			r.Post("/sides/toggle", s.handleToggleSides)

			r.Get("/matches", s.handleListMatches)
			r.Get("/matches/{id}", s.handleGetMatch)
			r.Delete("/matches/{id}", s.handleDeleteMatch)

			r.Post("/sync", s.handleSync)
		})
	})

	// Streams stay open; no request timeout.
	if s.syncHub != nil {
		r.Get("/api/sync/events", s.syncHub.HandleSyncSSE)
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a tracker error to a status code.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidOutcome):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoActiveMatch), errors.Is(err, domain.ErrMatchEnded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRemoteDisabled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	writeError(w, status, err.Error())
}

// corsMiddleware adds CORS headers for a local UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
