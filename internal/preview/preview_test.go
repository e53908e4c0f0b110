package preview

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
	"github.com/natemcgrady/web-based-ide/internal/terminal"
)

func setupPreview(t *testing.T) (*Service, *session.Manager, *sandbox.FakeProvider, *terminal.EventLog) {
	t.Helper()
	provider := sandbox.NewFakeProvider()
	sessions := session.NewManager(session.NewMemoryStore(), provider, session.Config{
		MaxLifetime:      time.Hour,
		IdleTimeout:      30 * time.Minute,
		MaxActivePerUser: 2,
		DefaultCwd:       "/workspace",
		PreviewPort:      3000,
	})
	events := terminal.NewEventLog(100)
	return NewService(provider, sessions, events, audit.NewLogger(nil)), sessions, provider, events
}

func TestService_StartLaunchesDevServer(t *testing.T) {
	service, sessions, provider, events := setupPreview(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var runs []sandbox.RunOptions
	provider.OnRun = func(opts sandbox.RunOptions) *sandbox.RunResult {
		runs = append(runs, opts)
		return &sandbox.RunResult{ExitCode: 0, Stdout: "ok\n"}
	}

	result, err := service.Start(ctx, sess, "user-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if result.CommandID == "" {
		t.Error("no command id for the dev server process")
	}
	if !strings.Contains(result.PreviewURL, "3000") {
		t.Errorf("preview url %q does not target port 3000", result.PreviewURL)
	}

	if len(runs) != 2 {
		t.Fatalf("ran %d commands, want install then dev", len(runs))
	}
	if runs[0].Args[0] != "install" || runs[0].Detached {
		t.Errorf("first run = %+v, want attached install", runs[0])
	}
	if runs[1].Args[0] != "dev" || !runs[1].Detached {
		t.Errorf("second run = %+v, want detached dev server", runs[1])
	}

	stored, err := sessions.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PreviewCommandID != result.CommandID {
		t.Errorf("session command id %q != result %q", stored.PreviewCommandID, result.CommandID)
	}

	// Process output lands in the session's event ring.
	sawStdout := false
	for _, ev := range events.List(sess.SessionID, 0) {
		if ev.Stream == terminal.StreamStdout {
			sawStdout = true
		}
	}
	if !sawStdout {
		t.Error("install output never reached the event log")
	}
}

func TestService_StatusLifecycle(t *testing.T) {
	service, sessions, provider, _ := setupPreview(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "proj-1", "user-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	status, err := service.Status(ctx, sess)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CommandStatus != "not-started" || status.ExitCode != nil {
		t.Fatalf("initial status = %+v, want not-started", status)
	}

	result, err := service.Start(ctx, sess, "user-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	sess, err = sessions.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	status, err = service.Status(ctx, sess)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CommandStatus != "running" {
		t.Fatalf("status after start = %q, want running", status.CommandStatus)
	}

	handle, err := provider.Get(ctx, sess.SandboxID)
	if err != nil {
		t.Fatalf("get sandbox: %v", err)
	}
	handle.(*sandbox.FakeSandbox).FinishCommand(result.CommandID, 137)

	status, err = service.Status(ctx, sess)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CommandStatus != "stopped" || status.ExitCode == nil || *status.ExitCode != 137 {
		t.Fatalf("status after exit = %+v, want stopped with code 137", status)
	}
}
