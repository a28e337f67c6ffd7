// Package http exposes the ledger over a local JSON API: the measurement
// form, session list and report widgets of the app all talk to these
// endpoints. The API is a thin shell; every rule lives in the services.
package http

import (
	"net/http"
	"time"

	"skoglogg/internal/events"
	applog "skoglogg/internal/log"
	"skoglogg/internal/services"
)

type Server struct {
	ledger   *services.LedgerService
	sessions *services.SessionManager
	reporter *services.Reporter
	notifier *events.Notifier

	now func() time.Time
}

func NewServer(ledger *services.LedgerService, sessions *services.SessionManager, reporter *services.Reporter, notifier *events.Notifier) *Server {
	return &Server{
		ledger:   ledger,
		sessions: sessions,
		reporter: reporter,
		notifier: notifier,
		now:      time.Now,
	}
}

// Handler returns the routed handler with request logging attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/measurements", s.handleCreateMeasurement)
	mux.HandleFunc("DELETE /api/measurements/{id}", s.handleDeleteMeasurement)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("DELETE /api/sessions/{id}/measurements", s.handleClearSession)

	mux.HandleFunc("GET /api/reports/{period}", s.handleReport)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return applog.RequestLogger(mux)
}

// HTTPServer wraps the handler in an http.Server with sane timeouts.
// WriteTimeout stays off because the event stream holds its response open.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        s.Handler(),
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
