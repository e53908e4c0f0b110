// Package project is the project-file collaborator: a keyed CRUD store of
// file entries plus sync between the store and a session's sandbox. Durable
// persistence lives outside this system; this store keeps a seeded starter
// project per project id.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileEntry is one file or directory in a project tree.
type FileEntry struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	IsDir     bool      `json:"is_dir"`
	Hash      string    `json:"hash"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store struct {
	mu       sync.RWMutex
	projects map[string]map[string]FileEntry
}

func NewStore() *Store {
	return &Store{projects: make(map[string]map[string]FileEntry)}
}

// NormalizePath strips leading slashes and dot segments so sandbox and store
// paths compare equal.
func NormalizePath(path string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(path), "./")
	return strings.TrimPrefix(cleaned, "/")
}

func buildEntry(path, content string, isDir bool) FileEntry {
	sum := sha256.Sum256([]byte(content))
	return FileEntry{
		Path:      NormalizePath(path),
		Content:   content,
		IsDir:     isDir,
		Hash:      hex.EncodeToString(sum[:8]),
		UpdatedAt: time.Now(),
	}
}

func (s *Store) ensure(projectID string) map[string]FileEntry {
	if files, ok := s.projects[projectID]; ok {
		return files
	}
	files := make(map[string]FileEntry)
	for _, entry := range seedProject() {
		files[entry.Path] = entry
	}
	s.projects[projectID] = files
	return files
}

// List returns the project tree sorted by path, seeding the starter project
// on first access.
func (s *Store) List(projectID string) []FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedTree(s.ensure(projectID))
}

// Upsert writes the given entries and returns the updated tree.
func (s *Store) Upsert(projectID string, entries []FileEntry) []FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.ensure(projectID)
	for _, entry := range entries {
		built := buildEntry(entry.Path, entry.Content, entry.IsDir)
		files[built.Path] = built
	}
	return sortedTree(files)
}

// Delete removes the given paths and returns the updated tree.
func (s *Store) Delete(projectID string, paths []string) []FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.ensure(projectID)
	for _, path := range paths {
		delete(files, NormalizePath(path))
	}
	return sortedTree(files)
}

func sortedTree(files map[string]FileEntry) []FileEntry {
	result := make([]FileEntry, 0, len(files))
	for _, entry := range files {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

func seedProject() []FileEntry {
	pkg, _ := json.MarshalIndent(map[string]interface{}{
		"name":    "sandbox-project",
		"private": true,
		"scripts": map[string]string{
			"dev":     "vite --host 0.0.0.0 --port 3000",
			"build":   "vite build",
			"preview": "vite preview --host 0.0.0.0 --port 3000",
		},
	}, "", "  ")

	index := strings.Join([]string{
		"<!doctype html>",
		"<html>",
		"  <head>",
		`    <meta charset="UTF-8" />`,
		`    <meta name="viewport" content="width=device-width, initial-scale=1.0" />`,
		"    <title>web-based-ide preview</title>",
		"  </head>",
		"  <body>",
		`    <div id="app"></div>`,
		`    <script type="module" src="/src/main.ts"></script>`,
		"  </body>",
		"</html>",
	}, "\n")

	main := strings.Join([]string{
		"const app = document.getElementById('app');",
		"if (app) {",
		"  app.innerHTML = '<h1>web-based-ide sandbox is live.</h1>';",
		"}",
	}, "\n")

	return []FileEntry{
		buildEntry("package.json", string(pkg), false),
		buildEntry("index.html", index, false),
		buildEntry("src/main.ts", main, false),
	}
}
