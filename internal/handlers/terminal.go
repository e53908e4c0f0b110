package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natemcgrady/web-based-ide/internal/middleware"
)

type terminalInputRequest struct {
	Command string `json:"command"`
}

// TerminalInput runs one terminal command in the caller's session. Input is
// rate-limited per user+session before the session is even loaded.
// POST /api/v1/terminal/{sessionId}/input
func (a *API) TerminalInput(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	sessionID := chi.URLParam(r, "sessionId")

	key := fmt.Sprintf("terminal:%s:%s", userID, sessionID)
	if err := a.Gate.EnforceRateLimit(key, a.Cfg.RateLimitMax, a.Cfg.RateLimitWindow); err != nil {
		writeAppError(w, err)
		return
	}

	var req terminalInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid command payload")
		return
	}

	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	result, err := a.Executor.Run(r.Context(), sess, req.Command, userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
