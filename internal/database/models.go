package database

import "time"

// SessionRow is the shared-store representation of a session. TTLExpiresUnix
// is the store-level TTL: rows past it read as misses until the cleanup sweep
// deletes them.
type SessionRow struct {
	SessionID        string    `gorm:"primaryKey;size:64" json:"session_id"`
	UserID           string    `gorm:"not null;index;size:128" json:"user_id"`
	ProjectID        string    `gorm:"not null;size:128" json:"project_id"`
	SandboxID        string    `gorm:"not null" json:"sandbox_id"`
	Status           string    `gorm:"not null;default:creating" json:"status"`
	Cwd              string    `gorm:"not null" json:"cwd"`
	PreviewPort      int       `gorm:"not null;default:0" json:"preview_port"`
	PreviewCommandID string    `json:"preview_command_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	TTLExpiresUnix   int64     `gorm:"index" json:"-"`
}

// AuditEvent is one audit trail entry. Payload is a JSON blob.
type AuditEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"not null;index" json:"type"`
	ActorID   string    `gorm:"not null" json:"actor_id"`
	SessionID string    `gorm:"index" json:"session_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Payload   string    `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
