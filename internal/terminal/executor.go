package terminal

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
)

// pwdSentinel prefixes the line the command wrapper prints after the user's
// command so the executor can recover the post-command working directory
// without a second round trip. The line is stripped from forwarded stdout.
const pwdSentinel = "__WEB_BASED_IDE_PWD__:"

// Executor runs one terminal command against a session's sandbox. Within a
// session, execution is serialized by the manager's per-session lock; the
// busy/ready status transition is bracketed so the session never sticks in
// busy, whatever the remote call does.
type Executor struct {
	provider sandbox.Provider
	sessions *session.Manager
	events   *EventLog
	gate     *Gate
	audit    audit.Sink
}

func NewExecutor(provider sandbox.Provider, sessions *session.Manager, events *EventLog, gate *Gate, sink audit.Sink) *Executor {
	return &Executor{
		provider: provider,
		sessions: sessions,
		events:   events,
		gate:     gate,
		audit:    sink,
	}
}

// RunResult is what the terminal input endpoint returns to the client.
type RunResult struct {
	ExitCode int    `json:"exit_code"`
	Cwd      string `json:"cwd"`
}

func (e *Executor) Run(ctx context.Context, sess *session.Session, command, actorID string) (_ *RunResult, err error) {
	if err := e.gate.ValidateCommand(command); err != nil {
		return nil, err
	}

	release, err := e.sessions.ExecLock(sess.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	handle, err := e.provider.Get(ctx, sess.SandboxID)
	if err != nil {
		return nil, err
	}

	if _, err := e.sessions.Update(ctx, sess.SessionID, func(s *session.Session) {
		s.Status = session.StatusBusy
	}); err != nil {
		return nil, err
	}

	recoveredCwd := ""
	defer func() {
		// The transition back to ready must happen on every exit path, and
		// must not be lost to a cancelled request context.
		cleanupCtx := context.WithoutCancel(ctx)
		if _, updateErr := e.sessions.Update(cleanupCtx, sess.SessionID, func(s *session.Session) {
			s.Status = session.StatusReady
			if recoveredCwd != "" {
				s.Cwd = recoveredCwd
			}
		}); updateErr != nil {
			log.Printf("Restore session %s to ready: %v", sess.SessionID, updateErr)
		}
	}()

	e.events.Push(sess.SessionID, StreamSystem, "$ "+command)

	// The wrapper chains with && so the sentinel only prints when the user's
	// command succeeds; on failure cwd stays as it was.
	wrapped := strings.Join([]string{
		"cd " + shellSingleQuote(sess.Cwd),
		command,
		fmt.Sprintf(`printf "\n%s%%s\n" "$PWD"`, pwdSentinel),
	}, " && ")

	result, err := handle.Run(ctx, sandbox.RunOptions{
		Cmd:  "bash",
		Args: []string{"-lc", wrapped},
	})
	if err != nil {
		return nil, err
	}

	stdout, cwd := extractPwd(result.Stdout)
	if strings.TrimSpace(stdout) != "" {
		e.events.Push(sess.SessionID, StreamStdout, stdout)
	}
	if strings.TrimSpace(result.Stderr) != "" {
		e.events.Push(sess.SessionID, StreamStderr, result.Stderr)
	}
	recoveredCwd = cwd

	e.audit.Log(audit.Event{
		Type:      "terminal.command",
		ActorID:   actorID,
		SessionID: sess.SessionID,
		ProjectID: sess.ProjectID,
		Payload: map[string]interface{}{
			"command":   command,
			"exit_code": result.ExitCode,
		},
	})

	finalCwd := sess.Cwd
	if cwd != "" {
		finalCwd = cwd
	}
	return &RunResult{ExitCode: result.ExitCode, Cwd: finalCwd}, nil
}

func shellSingleQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// extractPwd pulls the sentinel line out of stdout, returning the cleaned
// stdout and the recovered working directory ("" when no sentinel was
// printed).
func extractPwd(stdout string) (string, string) {
	if !strings.Contains(stdout, pwdSentinel) {
		return stdout, ""
	}

	lines := strings.Split(stdout, "\n")
	cwd := ""
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, pwdSentinel) {
			if cwd == "" {
				cwd = strings.TrimSpace(strings.TrimPrefix(line, pwdSentinel))
			}
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), cwd
}
