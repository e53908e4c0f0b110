// Package handlers exposes the control plane over HTTP. All state lives in
// injected collaborators so tests construct a fresh API per test.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/natemcgrady/web-based-ide/internal/apperr"
	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/config"
	"github.com/natemcgrady/web-based-ide/internal/middleware"
	"github.com/natemcgrady/web-based-ide/internal/preview"
	"github.com/natemcgrady/web-based-ide/internal/project"
	"github.com/natemcgrady/web-based-ide/internal/session"
	"github.com/natemcgrady/web-based-ide/internal/terminal"
)

type API struct {
	Sessions *session.Manager
	Events   *terminal.EventLog
	Executor *terminal.Executor
	Gate     *terminal.Gate
	Projects *project.Store
	Syncer   *project.Syncer
	Previews *preview.Service
	Audit    audit.Sink
	Cfg      config.Settings
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", a.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.WithIdentity)

		r.Get("/sessions", a.ListSessions)
		r.Post("/sessions", a.CreateSession)
		r.Get("/sessions/{sessionId}", a.GetSession)
		r.Patch("/sessions/{sessionId}", a.TouchSession)
		r.Delete("/sessions/{sessionId}", a.TerminateSession)

		r.Post("/terminal/{sessionId}/input", a.TerminalInput)
		r.Get("/terminal/{sessionId}/events", a.StreamEvents)
		r.Get("/terminal/{sessionId}/ws", a.StreamEventsWS)

		r.Post("/preview/{sessionId}/start", a.StartPreview)
		r.Get("/preview/{sessionId}/status", a.PreviewStatus)

		r.Get("/projects/{projectId}/files", a.ListProjectFiles)
		r.Patch("/projects/{projectId}/files", a.PatchProjectFiles)
		r.Post("/projects/{projectId}/sync", a.SyncProject)

		r.Post("/maintenance/cleanup-sessions", a.CleanupSessions)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeAppError maps an error's kind to its HTTP status. Unclassified errors
// become opaque 500s.
func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.InvalidInput, apperr.BlockedPattern:
		status = http.StatusBadRequest
	case apperr.RateLimited:
		status = http.StatusTooManyRequests
	case apperr.QuotaExceeded, apperr.SessionBusy:
		status = http.StatusConflict
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Forbidden:
		status = http.StatusForbidden
	case apperr.ProvisionFailed:
		status = http.StatusBadGateway
	}
	writeError(w, status, apperr.UserMessage(err))
}

// requireSession loads the session in the URL and checks the caller owns it.
// On failure it writes the response and returns nil.
func (a *API) requireSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return nil
	}

	sess, err := a.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, err)
		return nil
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil
	}
	if sess.UserID != middleware.UserID(r) {
		writeError(w, http.StatusForbidden, "you do not have access to this session")
		return nil
	}
	return sess
}

func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
