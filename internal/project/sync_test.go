package project

import (
	"context"
	"testing"
	"time"

	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
)

func setupSync(t *testing.T) (*Syncer, *Store, *session.Session, *sandbox.FakeSandbox) {
	t.Helper()
	provider := sandbox.NewFakeProvider()
	handle, err := provider.Create(context.Background(), sandbox.CreateOptions{})
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}

	store := NewStore()
	sess := &session.Session{
		SessionID: "sess-1",
		UserID:    "user-1",
		ProjectID: "proj-1",
		SandboxID: handle.ID(),
		Status:    session.StatusReady,
		CreatedAt: time.Now(),
	}
	return NewSyncer(provider, store), store, sess, handle.(*sandbox.FakeSandbox)
}

func TestSyncer_ToSandbox(t *testing.T) {
	syncer, store, sess, sb := setupSync(t)
	ctx := context.Background()

	store.Upsert("proj-1", []FileEntry{
		{Path: "src/extra.ts", Content: "export {}"},
		{Path: "src", IsDir: true},
	})

	synced, err := syncer.ToSandbox(ctx, sess)
	if err != nil {
		t.Fatalf("ToSandbox: %v", err)
	}
	// Starter project files plus the upsert; the directory entry is skipped.
	if synced != 4 {
		t.Fatalf("synced %d files, want 4", synced)
	}

	content, err := sb.ReadFile(ctx, "src/extra.ts")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "export {}" {
		t.Fatalf("sandbox content = %q", content)
	}
}

func TestSyncer_FromSandbox(t *testing.T) {
	syncer, store, sess, sb := setupSync(t)
	ctx := context.Background()

	if err := sb.WriteFiles(ctx, []sandbox.FileEntry{
		{Path: "src/generated.ts", Content: []byte("export const n = 42")},
	}); err != nil {
		t.Fatalf("seed sandbox: %v", err)
	}
	sb.RunFunc = func(opts sandbox.RunOptions) *sandbox.RunResult {
		return &sandbox.RunResult{Stdout: "./src/generated.ts\n./vanished.ts\n"}
	}

	tree, synced, err := syncer.FromSandbox(ctx, sess)
	if err != nil {
		t.Fatalf("FromSandbox: %v", err)
	}
	// vanished.ts is listed but unreadable, so only one file lands.
	if synced != 1 {
		t.Fatalf("synced %d files, want 1", synced)
	}

	found := false
	for _, entry := range tree {
		if entry.Path == "src/generated.ts" && entry.Content == "export const n = 42" {
			found = true
		}
	}
	if !found {
		t.Fatal("pulled file missing from returned tree")
	}

	stored := store.List("proj-1")
	if hashFor(stored, "src/generated.ts") == "" {
		t.Fatal("pulled file not persisted in store")
	}
}
