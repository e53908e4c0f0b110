package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/natemcgrady/web-based-ide/internal/sandbox"
	"github.com/natemcgrady/web-based-ide/internal/session"
)

// Syncer copies project files between the store and a session's sandbox.
type Syncer struct {
	provider sandbox.Provider
	store    *Store
}

func NewSyncer(provider sandbox.Provider, store *Store) *Syncer {
	return &Syncer{provider: provider, store: store}
}

// ToSandbox writes every concrete (non-directory) project file into the
// sandbox and returns the number synced.
func (s *Syncer) ToSandbox(ctx context.Context, sess *session.Session) (int, error) {
	handle, err := s.provider.Get(ctx, sess.SandboxID)
	if err != nil {
		return 0, err
	}

	var files []sandbox.FileEntry
	for _, entry := range s.store.List(sess.ProjectID) {
		if entry.IsDir {
			continue
		}
		files = append(files, sandbox.FileEntry{
			Path:    NormalizePath(entry.Path),
			Content: []byte(entry.Content),
		})
	}

	if err := handle.WriteFiles(ctx, files); err != nil {
		return 0, fmt.Errorf("write files to sandbox: %w", err)
	}
	return len(files), nil
}

// FromSandbox lists the sandbox working tree (skipping node_modules and
// .git), reads each file, and upserts the results into the store. Returns
// the updated tree and the number synced.
func (s *Syncer) FromSandbox(ctx context.Context, sess *session.Session) ([]FileEntry, int, error) {
	handle, err := s.provider.Get(ctx, sess.SandboxID)
	if err != nil {
		return nil, 0, err
	}

	listing, err := handle.Run(ctx, sandbox.RunOptions{
		Cmd: "bash",
		Args: []string{"-lc",
			"find . -type f -not -path './node_modules/*' -not -path './.git/*' -print"},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list sandbox files: %w", err)
	}

	var updates []FileEntry
	for _, line := range strings.Split(listing.Stdout, "\n") {
		path := NormalizePath(line)
		if path == "" {
			continue
		}
		content, err := handle.ReadFile(ctx, path)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s from sandbox: %w", path, err)
		}
		if content == nil {
			continue
		}
		updates = append(updates, FileEntry{Path: path, Content: string(content)})
	}

	tree := s.store.Upsert(sess.ProjectID, updates)
	return tree, len(updates), nil
}
