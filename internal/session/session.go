// Package session owns the session state machine: one Session binds a user,
// a project, and a remote sandbox for the sandbox's lifetime.
package session

import "time"

type Status string

const (
	StatusCreating    Status = "creating"
	StatusReady       Status = "ready"
	StatusBusy        Status = "busy"
	StatusTerminating Status = "terminating"
	StatusTerminated  Status = "terminated"
	StatusError       Status = "error"
)

// Session is one live user/project/sandbox binding. ExpiresAt is fixed at
// creation and never extended; UpdatedAt advances on every mutation and
// drives idle detection. A terminated session is deleted from the store, so
// "terminated" and "not found" are indistinguishable to callers.
type Session struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	ProjectID        string    `json:"project_id"`
	SandboxID        string    `json:"sandbox_id"`
	Status           Status    `json:"status"`
	Cwd              string    `json:"cwd"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	PreviewPort      int       `json:"preview_port"`
	PreviewCommandID string    `json:"preview_command_id,omitempty"`
}

func (s *Session) clone() *Session {
	copied := *s
	return &copied
}
