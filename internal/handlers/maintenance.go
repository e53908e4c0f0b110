package handlers

import (
	"net/http"
)

// CleanupSessions runs the expiry sweep on demand. The route is guarded by
// a bearer secret when one is configured, so an external scheduler can
// trigger sweeps without carrying a user identity.
// POST /api/v1/maintenance/cleanup-sessions
func (a *API) CleanupSessions(w http.ResponseWriter, r *http.Request) {
	if a.Cfg.CleanupSecret != "" {
		if r.Header.Get("Authorization") != "Bearer "+a.Cfg.CleanupSecret {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}

	removed := a.Sessions.Cleanup(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "removed": removed})
}
