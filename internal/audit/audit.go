// Package audit records security-relevant actions. Logging is
// fire-and-forget: a sink must never block or fail its caller.
package audit

import (
	"encoding/json"
	"log"

	"gorm.io/gorm"

	"github.com/natemcgrady/web-based-ide/internal/database"
)

// Event is one audit trail entry.
type Event struct {
	Type      string
	ActorID   string
	SessionID string
	ProjectID string
	Payload   map[string]interface{}
}

type Sink interface {
	Log(event Event)
}

// Logger persists audit events via gorm and mirrors each entry to the
// process log. Failures are logged and swallowed.
type Logger struct {
	db *gorm.DB
}

// NewLogger returns a Logger. A nil db mirrors to the process log only.
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(event Event) {
	payload := ""
	if len(event.Payload) > 0 {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			log.Printf("audit: marshal payload for %s: %v", event.Type, err)
		} else {
			payload = string(data)
		}
	}

	log.Printf("[audit] type=%s actor=%s session=%s project=%s payload=%s",
		event.Type, event.ActorID, event.SessionID, event.ProjectID, payload)

	if l.db == nil {
		return
	}
	row := database.AuditEvent{
		Type:      event.Type,
		ActorID:   event.ActorID,
		SessionID: event.SessionID,
		ProjectID: event.ProjectID,
		Payload:   payload,
	}
	if err := l.db.Create(&row).Error; err != nil {
		log.Printf("audit: persist %s: %v", event.Type, err)
	}
}

var _ Sink = (*Logger)(nil)
