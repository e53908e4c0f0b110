package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/natemcgrady/web-based-ide/internal/project"
)

func TestListProjectFiles_SeedsProject(t *testing.T) {
	env := setupAPI(t, nil)

	var resp struct {
		ProjectID string              `json:"project_id"`
		Files     []project.FileEntry `json:"files"`
	}
	status := env.doJSON(t, http.MethodGet, "/api/v1/projects/proj-1/files", "user-1", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if resp.ProjectID != "proj-1" || len(resp.Files) == 0 {
		t.Fatalf("response = %+v, want seeded tree", resp)
	}
}

func TestPatchProjectFiles(t *testing.T) {
	env := setupAPI(t, nil)

	var resp struct {
		Files []project.FileEntry `json:"files"`
	}
	status := env.doJSON(t, http.MethodPatch, "/api/v1/projects/proj-1/files", "user-1",
		map[string]interface{}{
			"files": []map[string]interface{}{
				{"path": "src/new.ts", "content": "export {}", "operation": "upsert"},
				{"path": "index.html", "operation": "delete"},
			},
		}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	paths := make(map[string]bool)
	for _, entry := range resp.Files {
		paths[entry.Path] = true
	}
	if !paths["src/new.ts"] {
		t.Error("upserted file missing from tree")
	}
	if paths["index.html"] {
		t.Error("deleted file still in tree")
	}
}

func TestPatchProjectFiles_RejectsBadOperation(t *testing.T) {
	env := setupAPI(t, nil)

	status := env.doJSON(t, http.MethodPatch, "/api/v1/projects/proj-1/files", "user-1",
		map[string]interface{}{
			"files": []map[string]interface{}{
				{"path": "src/new.ts", "operation": "rename"},
			},
		}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestSyncProject_ToSandbox(t *testing.T) {
	env := setupAPI(t, nil)
	sess := env.createSession(t, "user-1", "proj-1")

	var resp map[string]int
	status := env.doJSON(t, http.MethodPost, "/api/v1/projects/proj-1/sync", "user-1",
		map[string]string{"session_id": sess.SessionID, "direction": "to-sandbox"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if resp["synced"] == 0 {
		t.Fatal("no files synced to sandbox")
	}

	content, err := env.fakeSandbox(t, sess.SandboxID).ReadFile(context.Background(), "package.json")
	if err != nil || content == nil {
		t.Fatalf("package.json not in sandbox: %v", err)
	}
}

func TestSyncProject_OwnershipEnforced(t *testing.T) {
	env := setupAPI(t, nil)
	sess := env.createSession(t, "user-1", "proj-1")

	status := env.doJSON(t, http.MethodPost, "/api/v1/projects/proj-1/sync", "user-2",
		map[string]string{"session_id": sess.SessionID}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("stranger sync = %d, want 403", status)
	}
}
