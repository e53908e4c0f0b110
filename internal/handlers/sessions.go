package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/middleware"
)

type createSessionRequest struct {
	ProjectID string `json:"project_id"`
}

// ListSessions returns the caller's non-terminated sessions.
// GET /api/v1/sessions
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.Sessions.ListUserSessions(r.Context(), middleware.UserID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// CreateSession provisions a sandbox and registers a new session, subject to
// the per-user quota.
// POST /api/v1/sessions
func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	sess, err := a.Sessions.Create(r.Context(), req.ProjectID, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	a.Audit.Log(audit.Event{
		Type:      "session.create",
		ActorID:   userID,
		SessionID: sess.SessionID,
		ProjectID: req.ProjectID,
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": sess})
}

// GetSession returns one session owned by the caller.
// GET /api/v1/sessions/{sessionId}
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": sess})
}

// TouchSession advances the session's keepalive timestamp.
// PATCH /api/v1/sessions/{sessionId}
func (a *API) TouchSession(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	touched, err := a.Sessions.Touch(r.Context(), sess.SessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if touched == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": touched})
}

// TerminateSession stops the sandbox and removes the session. Terminating a
// session that is already gone is a 404, matching the "terminated equals
// not found" contract.
// DELETE /api/v1/sessions/{sessionId}
func (a *API) TerminateSession(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	terminated, err := a.Sessions.Terminate(r.Context(), sess.SessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if terminated == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	a.Audit.Log(audit.Event{
		Type:      "session.terminate",
		ActorID:   middleware.UserID(r),
		SessionID: sess.SessionID,
		ProjectID: sess.ProjectID,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
