package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/natemcgrady/web-based-ide/internal/audit"
	"github.com/natemcgrady/web-based-ide/internal/config"
	"github.com/natemcgrady/web-based-ide/internal/preview"
	"github.com/natemcgrady/web-based-ide/internal/project"
	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
	"github.com/natemcgrady/web-based-ide/internal/terminal"
)

var errTest = errors.New("injected failure")

// testEnv bundles an API wired entirely in memory with its collaborators so
// tests can reach behind the HTTP surface.
type testEnv struct {
	api      *API
	server   *httptest.Server
	provider *sandbox.FakeProvider
	sessions *session.Manager
	events   *terminal.EventLog
	gate     *terminal.Gate
}

func setupAPI(t *testing.T, mutate func(cfg *config.Settings)) *testEnv {
	t.Helper()

	cfg := config.Settings{
		MaxActivePerUser:   2,
		SessionMaxLifetime: 2 * time.Hour,
		SessionIdleTimeout: 25 * time.Minute,
		SandboxTimeout:     30 * time.Minute,
		SandboxWorkdir:     "/workspace",
		MaxCommandLength:   4000,
		EventRingSize:      100,
		RateLimitWindow:    10 * time.Second,
		RateLimitMax:       20,
		StreamMaxDuration:  200 * time.Millisecond,
		StreamPollInterval: 20 * time.Millisecond,
		PreviewPort:        3000,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	provider := sandbox.NewFakeProvider()
	sessions := session.NewManager(session.NewMemoryStore(), provider, session.Config{
		MaxLifetime:      cfg.SessionMaxLifetime,
		IdleTimeout:      cfg.SessionIdleTimeout,
		MaxActivePerUser: cfg.MaxActivePerUser,
		SandboxTimeout:   cfg.SandboxTimeout,
		Ports:            config.SandboxPorts,
		PreviewPort:      cfg.PreviewPort,
		DefaultCwd:       cfg.SandboxWorkdir,
	})
	events := terminal.NewEventLog(cfg.EventRingSize)
	gate := terminal.NewGate(cfg.MaxCommandLength, config.DefaultPolicy.BlockedPatterns)
	sessions.OnRemove(events.Drop)
	sessions.OnRemove(func(sessionID string) { gate.DropCounters(sessionID) })

	auditLog := audit.NewLogger(nil)
	projects := project.NewStore()

	api := &API{
		Sessions: sessions,
		Events:   events,
		Executor: terminal.NewExecutor(provider, sessions, events, gate, auditLog),
		Gate:     gate,
		Projects: projects,
		Syncer:   project.NewSyncer(provider, projects),
		Previews: preview.NewService(provider, sessions, events, auditLog),
		Audit:    auditLog,
		Cfg:      cfg,
	}

	server := httptest.NewServer(api.Routes())
	t.Cleanup(server.Close)

	return &testEnv{
		api:      api,
		server:   server,
		provider: provider,
		sessions: sessions,
		events:   events,
		gate:     gate,
	}
}

// doJSON issues a request as the given user and decodes the JSON response
// into out (skipped when out is nil).
func (e *testEnv) doJSON(t *testing.T, method, path, userID string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// createSession provisions a session for the user through the API.
func (e *testEnv) createSession(t *testing.T, userID, projectID string) *session.Session {
	t.Helper()
	var resp struct {
		Session *session.Session `json:"session"`
	}
	status := e.doJSON(t, http.MethodPost, "/api/v1/sessions", userID,
		map[string]string{"project_id": projectID}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("create session returned %d", status)
	}
	return resp.Session
}

func (e *testEnv) fakeSandbox(t *testing.T, sandboxID string) *sandbox.FakeSandbox {
	t.Helper()
	handle, err := e.provider.Get(context.Background(), sandboxID)
	if err != nil {
		t.Fatalf("get sandbox %s: %v", sandboxID, err)
	}
	return handle.(*sandbox.FakeSandbox)
}
