package terminal

import (
	"sync"
	"time"
)

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	StreamSystem Stream = "system"
)

// Event is one atomic unit of observable sandbox output or system notice.
// IDs increase monotonically per session; clients use the last id they
// processed as a cursor to resume.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Stream    Stream    `json:"stream"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// EventLog keeps an append-only, bounded ring of events per session. When a
// session's ring exceeds the maximum, the oldest events are dropped first;
// clients that fall behind the ring can only resume from the oldest retained
// id.
type EventLog struct {
	mu       sync.RWMutex
	max      int
	sessions map[string]*sessionRing
}

type sessionRing struct {
	nextID int64
	events []Event
}

func NewEventLog(maxPerSession int) *EventLog {
	return &EventLog{
		max:      maxPerSession,
		sessions: make(map[string]*sessionRing),
	}
}

// Push assigns the next id for the session and appends the event, evicting
// the oldest entries beyond the ring maximum.
func (l *EventLog) Push(sessionID string, stream Stream, payload string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ring, ok := l.sessions[sessionID]
	if !ok {
		ring = &sessionRing{}
		l.sessions[sessionID] = ring
	}

	ring.nextID++
	event := Event{
		ID:        ring.nextID,
		SessionID: sessionID,
		Stream:    stream,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	ring.events = append(ring.events, event)
	if len(ring.events) > l.max {
		ring.events = ring.events[len(ring.events)-l.max:]
	}
	return event
}

// List returns all retained events with id strictly after cursor, in id
// order. Cursor 0 returns the full retained ring.
func (l *EventLog) List(sessionID string, cursor int64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ring, ok := l.sessions[sessionID]
	if !ok {
		return nil
	}

	// Events are ordered, so find the first id past the cursor.
	start := 0
	for start < len(ring.events) && ring.events[start].ID <= cursor {
		start++
	}
	if start == len(ring.events) {
		return nil
	}
	result := make([]Event, len(ring.events)-start)
	copy(result, ring.events[start:])
	return result
}

// Drop discards the ring for a session. Called on session termination.
func (l *EventLog) Drop(sessionID string) {
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
}
