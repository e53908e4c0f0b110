package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/natemcgrady/web-based-ide/internal/terminal"
)

// parseCursor reads the resume cursor from the query string; 0 means "from
// the oldest retained event".
func parseCursor(r *http.Request) int64 {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		return 0
	}
	cursor, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cursor < 0 {
		return 0
	}
	return cursor
}

// StreamEvents pushes the session's terminal events to the client as
// server-sent events. The stream opens with a ready notice, interleaves
// heartbeats on every poll, and self-terminates after the configured maximum
// duration; clients reconnect with their last-seen id as the cursor.
// GET /api/v1/terminal/{sessionId}/events?cursor=N
func (a *API) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: ready\ndata: {\"session_id\":%q}\n\n", sess.SessionID)
	flusher.Flush()

	ctx, cancel := context.WithTimeout(r.Context(), a.Cfg.StreamMaxDuration)
	defer cancel()

	cursor := parseCursor(r)
	ticker := time.NewTicker(a.Cfg.StreamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, event := range a.Events.List(sess.SessionID, cursor) {
			cursor = event.ID
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Stream, data)
		}

		fmt.Fprint(w, ": heartbeat\n\n")
		flusher.Flush()
	}
}

// wsFrame is one message on the websocket event stream.
type wsFrame struct {
	Type  string          `json:"type"` // ready | event | heartbeat
	Event *terminal.Event `json:"event,omitempty"`
}

// StreamEventsWS is the websocket variant of StreamEvents with identical
// ordering and cursor semantics.
// GET /api/v1/terminal/{sessionId}/ws?cursor=N
func (a *API) StreamEventsWS(w http.ResponseWriter, r *http.Request) {
	sess := a.requireSession(w, r)
	if sess == nil {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("Failed to accept events websocket: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(r.Context(), a.Cfg.StreamMaxDuration)
	defer cancel()

	writeFrame := func(frame wsFrame) error {
		data, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, data)
	}

	if err := writeFrame(wsFrame{Type: "ready"}); err != nil {
		return
	}

	cursor := parseCursor(r)
	ticker := time.NewTicker(a.Cfg.StreamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "stream duration elapsed")
			return
		case <-ticker.C:
		}

		for _, event := range a.Events.List(sess.SessionID, cursor) {
			cursor = event.ID
			ev := event
			if err := writeFrame(wsFrame{Type: "event", Event: &ev}); err != nil {
				return
			}
		}
		if err := writeFrame(wsFrame{Type: "heartbeat"}); err != nil {
			return
		}
	}
}
