// Package sandbox defines the capability surface of the remote execution
// provider and ships a Docker-backed implementation. The rest of the system
// depends only on Provider and Handle; nothing above this package assumes
// anything about the provider's transport.
package sandbox

import (
	"context"
	"io"
	"time"
)

// CreateOptions configures a new sandbox.
type CreateOptions struct {
	Timeout time.Duration // hard wall-clock lifetime the provider enforces
	Ports   []int         // ports exposed for preview traffic
}

// RunOptions describes one command execution inside a sandbox.
type RunOptions struct {
	Cmd      string
	Args     []string
	Cwd      string
	Detached bool      // return immediately, leave the process running
	Stdout   io.Writer // optional live sink; buffered capture when nil
	Stderr   io.Writer
}

// RunResult is the outcome of a non-detached run, or the identity of a
// detached one (ExitCode is meaningless while the command still runs).
type RunResult struct {
	CommandID string
	ExitCode  int
	Stdout    string
	Stderr    string
}

// CommandStatus reports on a previously started (detached) command.
type CommandStatus struct {
	CommandID string
	Running   bool
	ExitCode  int
}

// FileEntry is one file written into a sandbox.
type FileEntry struct {
	Path    string
	Content []byte
}

// Provider creates and resolves sandboxes.
type Provider interface {
	Create(ctx context.Context, opts CreateOptions) (Handle, error)
	Get(ctx context.Context, sandboxID string) (Handle, error)
}

// Handle is one live sandbox.
type Handle interface {
	ID() string
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	Command(ctx context.Context, commandID string) (*CommandStatus, error)
	WriteFiles(ctx context.Context, files []FileEntry) error
	// ReadFile returns nil, nil when the path does not exist.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Stop halts the sandbox. A sandbox that is already gone is not an
	// error. When blocking is false the stop proceeds in the background.
	Stop(ctx context.Context, blocking bool) error
	// PreviewURL returns the externally reachable URL for a sandbox port.
	PreviewURL(ctx context.Context, port int) (string, error)
}
