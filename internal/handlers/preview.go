package handlers

import (
	"net/http"

	"github.com/natemcgrady/web-based-ide/internal/middleware"
)

// StartPreview installs dependencies and launches the dev server in the
// session's sandbox.
// POST /api/v1/preview/{sessionId}/start
func (a *API) StartPreview(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	result, err := a.Previews.Start(r.Context(), sess, middleware.UserID(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PreviewStatus reports whether the preview process is running and where to
// reach it.
// GET /api/v1/preview/{sessionId}/status
func (a *API) PreviewStatus(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	status, err := a.Previews.Status(r.Context(), sess)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
