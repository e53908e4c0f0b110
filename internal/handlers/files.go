package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/natemcgrady/web-based-ide/internal/middleware"
	"github.com/natemcgrady/web-based-ide/internal/project"
)

// ListProjectFiles returns the project tree.
// GET /api/v1/projects/{projectId}/files
func (a *API) ListProjectFiles(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"files":      a.Projects.List(projectID),
	})
}

type filePatch struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	IsDir     bool   `json:"is_dir"`
	Operation string `json:"operation"` // upsert | delete
}

type filesPatchRequest struct {
	Files []filePatch `json:"files"`
}

// PatchProjectFiles applies a batch of upserts and deletes to the project
// tree.
// PATCH /api/v1/projects/{projectId}/files
func (a *API) PatchProjectFiles(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")

	var req filesPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var upserts []project.FileEntry
	var deletes []string
	for _, patch := range req.Files {
		if patch.Path == "" {
			writeError(w, http.StatusBadRequest, "file path is required")
			return
		}
		switch patch.Operation {
		case "upsert":
			upserts = append(upserts, project.FileEntry{
				Path:    patch.Path,
				Content: patch.Content,
				IsDir:   patch.IsDir,
			})
		case "delete":
			deletes = append(deletes, patch.Path)
		default:
			writeError(w, http.StatusBadRequest, "operation must be upsert or delete")
			return
		}
	}

	if len(upserts) > 0 {
		a.Projects.Upsert(projectID, upserts)
	}
	if len(deletes) > 0 {
		a.Projects.Delete(projectID, deletes)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"files":      a.Projects.List(projectID),
	})
}

type syncRequest struct {
	SessionID string `json:"session_id"`
	Direction string `json:"direction"` // to-sandbox | from-sandbox
}

// SyncProject copies project files into or out of the session's sandbox.
// POST /api/v1/projects/{projectId}/sync
func (a *API) SyncProject(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Direction == "" {
		req.Direction = "to-sandbox"
	}

	sess, err := a.Sessions.Get(r.Context(), req.SessionID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.UserID != middleware.UserID(r) {
		writeError(w, http.StatusForbidden, "you do not have access to this session")
		return
	}

	switch req.Direction {
	case "to-sandbox":
		synced, err := a.Syncer.ToSandbox(r.Context(), sess)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"synced": synced})
	case "from-sandbox":
		files, synced, err := a.Syncer.FromSandbox(r.Context(), sess)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"synced": synced, "files": files})
	default:
		writeError(w, http.StatusBadRequest, "direction must be to-sandbox or from-sandbox")
	}
}
