package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/natemcgrady/web-based-ide/internal/apperr"
)

// FakeProvider is an in-memory Provider for tests and for running the server
// without a Docker daemon. Command behavior is scripted per fake sandbox.
type FakeProvider struct {
	mu        sync.Mutex
	sandboxes map[string]*FakeSandbox

	// CreateErr, when set, makes Create fail (provisioning failure tests).
	CreateErr error
	// OnRun, when set, scripts every command on every sandbox.
	OnRun func(opts RunOptions) *RunResult
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{sandboxes: make(map[string]*FakeSandbox)}
}

func (p *FakeProvider) Create(ctx context.Context, opts CreateOptions) (Handle, error) {
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	sb := &FakeSandbox{
		provider: p,
		id:       "sbx-" + uuid.New().String(),
		files:    make(map[string][]byte),
		commands: make(map[string]*CommandStatus),
	}
	p.mu.Lock()
	p.sandboxes[sb.id] = sb
	p.mu.Unlock()
	return sb, nil
}

func (p *FakeProvider) Get(ctx context.Context, sandboxID string) (Handle, error) {
	p.mu.Lock()
	sb, ok := p.sandboxes[sandboxID]
	p.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "sandbox not found")
	}
	return sb, nil
}

// Stopped reports whether the sandbox with the given id has been stopped or
// never existed.
func (p *FakeProvider) Stopped(sandboxID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sb, ok := p.sandboxes[sandboxID]
	return !ok || sb.stopped
}

// Forget removes a sandbox so later Get/Stop calls see it as already gone.
func (p *FakeProvider) Forget(sandboxID string) {
	p.mu.Lock()
	delete(p.sandboxes, sandboxID)
	p.mu.Unlock()
}

type FakeSandbox struct {
	provider *FakeProvider
	id       string

	mu       sync.Mutex
	stopped  bool
	files    map[string][]byte
	commands map[string]*CommandStatus

	// RunFunc scripts commands for this sandbox; falls back to the
	// provider-level OnRun, then to a successful empty result.
	RunFunc func(opts RunOptions) *RunResult
	RunErr  error
	StopErr error
}

func (s *FakeSandbox) ID() string { return s.id }

func (s *FakeSandbox) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	s.mu.Lock()
	stopped := s.stopped
	runFunc := s.RunFunc
	runErr := s.RunErr
	s.mu.Unlock()

	if runErr != nil {
		return nil, runErr
	}
	if stopped {
		return nil, apperr.New(apperr.NotFound, "sandbox not found")
	}

	var result *RunResult
	switch {
	case runFunc != nil:
		result = runFunc(opts)
	case s.provider != nil && s.provider.OnRun != nil:
		result = s.provider.OnRun(opts)
	default:
		result = &RunResult{ExitCode: 0}
	}
	if result.CommandID == "" {
		result.CommandID = "cmd-" + uuid.New().String()
	}

	if opts.Stdout != nil && result.Stdout != "" {
		opts.Stdout.Write([]byte(result.Stdout))
	}
	if opts.Stderr != nil && result.Stderr != "" {
		opts.Stderr.Write([]byte(result.Stderr))
	}

	s.mu.Lock()
	s.commands[result.CommandID] = &CommandStatus{
		CommandID: result.CommandID,
		Running:   opts.Detached,
		ExitCode:  result.ExitCode,
	}
	s.mu.Unlock()
	return result, nil
}

// FinishCommand marks a detached command as exited with the given code.
func (s *FakeSandbox) FinishCommand(commandID string, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.commands[commandID]; ok {
		st.Running = false
		st.ExitCode = exitCode
	}
}

func (s *FakeSandbox) Command(ctx context.Context, commandID string) (*CommandStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.commands[commandID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "command not found")
	}
	copied := *st
	return &copied, nil
}

func (s *FakeSandbox) WriteFiles(ctx context.Context, files []FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return apperr.New(apperr.NotFound, "sandbox not found")
	}
	for _, f := range files {
		s.files[f.Path] = append([]byte(nil), f.Content...)
	}
	return nil
}

func (s *FakeSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), content...), nil
}

func (s *FakeSandbox) Stop(ctx context.Context, blocking bool) error {
	s.mu.Lock()
	stopErr := s.StopErr
	s.stopped = true
	s.mu.Unlock()
	return stopErr
}

func (s *FakeSandbox) PreviewURL(ctx context.Context, port int) (string, error) {
	return fmt.Sprintf("https://%s-%d.sandbox.local", s.id, port), nil
}

var _ Provider = (*FakeProvider)(nil)
var _ Handle = (*FakeSandbox)(nil)
