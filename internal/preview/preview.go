// Package preview launches and inspects the dev-server process inside a
// session's sandbox, piping its output into the terminal event log.
package preview

import (
	"context"
	"fmt"
	"strconv"

	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
	"github.com/natemcgrady/web-based-ide/internal/terminal"
)

type Service struct {
	provider sandbox.Provider
	sessions *session.Manager
	events   *terminal.EventLog
	audit    audit.Sink
}

func NewService(provider sandbox.Provider, sessions *session.Manager, events *terminal.EventLog, sink audit.Sink) *Service {
	return &Service{
		provider: provider,
		sessions: sessions,
		events:   events,
		audit:    sink,
	}
}

// StartResult reports the launched preview process and where to reach it.
type StartResult struct {
	CommandID  string `json:"command_id"`
	PreviewURL string `json:"preview_url"`
}

// Start installs dependencies, launches the dev server detached on the
// session's preview port, and records the command id on the session so
// Status can find it later.
func (s *Service) Start(ctx context.Context, sess *session.Session, actorID string) (*StartResult, error) {
	handle, err := s.provider.Get(ctx, sess.SandboxID)
	if err != nil {
		return nil, err
	}

	s.events.Push(sess.SessionID, terminal.StreamSystem, "Installing dependencies in sandbox with pnpm...")

	if _, err := handle.Run(ctx, sandbox.RunOptions{
		Cmd:    "pnpm",
		Args:   []string{"install", "--ignore-scripts"},
		Stdout: s.eventWriter(sess.SessionID, terminal.StreamStdout),
		Stderr: s.eventWriter(sess.SessionID, terminal.StreamStderr),
	}); err != nil {
		return nil, fmt.Errorf("install dependencies: %w", err)
	}

	s.events.Push(sess.SessionID, terminal.StreamSystem,
		fmt.Sprintf("Starting preview server on port %d...", sess.PreviewPort))

	command, err := handle.Run(ctx, sandbox.RunOptions{
		Cmd:      "pnpm",
		Args:     []string{"dev", "--host", "0.0.0.0", "--port", strconv.Itoa(sess.PreviewPort)},
		Detached: true,
		Stdout:   s.eventWriter(sess.SessionID, terminal.StreamStdout),
		Stderr:   s.eventWriter(sess.SessionID, terminal.StreamStderr),
	})
	if err != nil {
		return nil, fmt.Errorf("start preview server: %w", err)
	}

	if _, err := s.sessions.Update(ctx, sess.SessionID, func(s *session.Session) {
		s.PreviewCommandID = command.CommandID
	}); err != nil {
		return nil, err
	}

	url, err := handle.PreviewURL(ctx, sess.PreviewPort)
	if err != nil {
		return nil, err
	}

	s.audit.Log(audit.Event{
		Type:      "preview.start",
		ActorID:   actorID,
		SessionID: sess.SessionID,
		ProjectID: sess.ProjectID,
		Payload:   map[string]interface{}{"command_id": command.CommandID},
	})

	return &StartResult{CommandID: command.CommandID, PreviewURL: url}, nil
}

// Status reports on the preview process for a session.
type Status struct {
	PreviewURL    string `json:"preview_url"`
	CommandStatus string `json:"command_status"` // not-started | running | stopped
	ExitCode      *int   `json:"exit_code"`
}

func (s *Service) Status(ctx context.Context, sess *session.Session) (*Status, error) {
	handle, err := s.provider.Get(ctx, sess.SandboxID)
	if err != nil {
		return nil, err
	}

	url, err := handle.PreviewURL(ctx, sess.PreviewPort)
	if err != nil {
		return nil, err
	}

	status := &Status{PreviewURL: url, CommandStatus: "not-started"}
	if sess.PreviewCommandID == "" {
		return status, nil
	}

	command, err := handle.Command(ctx, sess.PreviewCommandID)
	if err != nil {
		return nil, err
	}
	if command.Running {
		status.CommandStatus = "running"
	} else {
		status.CommandStatus = "stopped"
		exit := command.ExitCode
		status.ExitCode = &exit
	}
	return status, nil
}

// eventWriter adapts the event log to an io.Writer so remote process output
// streams straight into the session's ring.
func (s *Service) eventWriter(sessionID string, stream terminal.Stream) *eventWriter {
	return &eventWriter{events: s.events, sessionID: sessionID, stream: stream}
}

type eventWriter struct {
	events    *terminal.EventLog
	sessionID string
	stream    terminal.Stream
}

func (w *eventWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.events.Push(w.sessionID, w.stream, string(p))
	}
	return len(p), nil
}
