package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/natemcgrady/web-based-ide/internal/apperr"
	"github.com/natemcgrady/web-based-ide/internal/sandbox"
)

// Config holds the lifecycle knobs for the Manager.
type Config struct {
	MaxLifetime      time.Duration
	IdleTimeout      time.Duration
	MaxActivePerUser int
	SandboxTimeout   time.Duration // hard lifetime requested from the provider
	Ports            []int
	PreviewPort      int
	DefaultCwd       string
}

// Manager owns session lifecycle: creation behind a per-user quota,
// read-time status repair, keepalive, idempotent termination, and the
// background expiry sweep. A per-session execution lock serializes command
// execution; per-user locks serialize quota-check-then-provision so
// concurrent creates cannot exceed the quota.
type Manager struct {
	store    Store
	provider sandbox.Provider
	cfg      Config
	now      func() time.Time

	userMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	execMu    sync.Mutex
	execLocks map[string]*sync.Mutex

	removeMu sync.Mutex
	onRemove []func(sessionID string)
}

func NewManager(store Store, provider sandbox.Provider, cfg Config) *Manager {
	return &Manager{
		store:     store,
		provider:  provider,
		cfg:       cfg,
		now:       time.Now,
		userLocks: make(map[string]*sync.Mutex),
		execLocks: make(map[string]*sync.Mutex),
	}
}

// OnRemove registers a hook invoked after a session's store record is
// removed, for releasing per-session resources such as the event ring.
func (m *Manager) OnRemove(fn func(sessionID string)) {
	m.removeMu.Lock()
	m.onRemove = append(m.onRemove, fn)
	m.removeMu.Unlock()
}

func (m *Manager) fireRemove(sessionID string) {
	m.removeMu.Lock()
	hooks := append([]func(string){}, m.onRemove...)
	m.removeMu.Unlock()
	for _, fn := range hooks {
		fn(sessionID)
	}
	m.dropExecLock(sessionID)
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.userMu.Lock()
	defer m.userMu.Unlock()
	lock, ok := m.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[userID] = lock
	}
	return lock
}

// ExecLock acquires the per-session execution lock. It fails fast with a
// SessionBusy error when a command is already running; the caller must
// invoke the returned release func on every exit path.
func (m *Manager) ExecLock(sessionID string) (func(), error) {
	m.execMu.Lock()
	lock, ok := m.execLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.execLocks[sessionID] = lock
	}
	m.execMu.Unlock()

	if !lock.TryLock() {
		return nil, apperr.New(apperr.SessionBusy, "a command is already running in this session")
	}
	return lock.Unlock, nil
}

func (m *Manager) dropExecLock(sessionID string) {
	m.execMu.Lock()
	delete(m.execLocks, sessionID)
	m.execMu.Unlock()
}

// EnforceQuota fails with QuotaExceeded once the user already has the
// configured maximum of non-terminated sessions. Create calls it under the
// per-user lock, strictly before provisioning.
func (m *Manager) EnforceQuota(ctx context.Context, userID string) error {
	sessions, err := m.ListUserSessions(ctx, userID)
	if err != nil {
		return err
	}
	if len(sessions) >= m.cfg.MaxActivePerUser {
		return apperr.Newf(apperr.QuotaExceeded,
			"reached max active sessions (%d) for this user", m.cfg.MaxActivePerUser)
	}
	return nil
}

// Create provisions a sandbox and registers a ready session. The quota check
// and the provision+register run under one per-user lock, so concurrent
// creates for the same user are serialized and cannot overshoot the cap.
func (m *Manager) Create(ctx context.Context, projectID, userID string) (*Session, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.EnforceQuota(ctx, userID); err != nil {
		return nil, err
	}

	handle, err := m.provider.Create(ctx, sandbox.CreateOptions{
		Timeout: m.cfg.SandboxTimeout,
		Ports:   m.cfg.Ports,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ProvisionFailed, "failed to provision sandbox", err)
	}

	now := m.now()
	sess := &Session{
		SessionID:   uuid.New().String(),
		UserID:      userID,
		ProjectID:   projectID,
		SandboxID:   handle.ID(),
		Status:      StatusReady,
		Cwd:         m.cfg.DefaultCwd,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.MaxLifetime),
		PreviewPort: m.cfg.PreviewPort,
	}

	if err := m.store.Upsert(ctx, sess, m.cfg.MaxLifetime); err != nil {
		// Registration failed; don't leak the sandbox.
		if stopErr := handle.Stop(ctx, false); stopErr != nil {
			log.Printf("Stop orphaned sandbox %s: %v", handle.ID(), stopErr)
		}
		return nil, err
	}
	return sess, nil
}

// Get returns nil, nil when the session is absent. A stale "creating" status
// is repaired to "ready" and re-persisted; this is the only state mutated
// implicitly on read.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Status == StatusCreating {
		sess.Status = StatusReady
		if err := m.store.Upsert(ctx, sess, m.cfg.MaxLifetime); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// ListUserSessions returns the user's non-terminated sessions.
func (m *Manager) ListUserSessions(ctx context.Context, userID string) ([]*Session, error) {
	sessions, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := sessions[:0]
	for _, sess := range sessions {
		if sess.Status != StatusTerminated {
			result = append(result, sess)
		}
	}
	return result, nil
}

// Touch advances UpdatedAt as a keepalive, independent of command activity.
// Returns nil, nil when the session is absent.
func (m *Manager) Touch(ctx context.Context, sessionID string) (*Session, error) {
	return m.Update(ctx, sessionID, func(*Session) {})
}

// Update applies mutate to the stored session, advances UpdatedAt, and
// re-persists. Returns nil, nil when the session is absent.
func (m *Manager) Update(ctx context.Context, sessionID string, mutate func(*Session)) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}
	mutate(sess)
	sess.UpdatedAt = m.now()
	if err := m.store.Upsert(ctx, sess, m.cfg.MaxLifetime); err != nil {
		return nil, err
	}
	return sess, nil
}

// Terminate stops the sandbox and deletes the session record. A sandbox the
// provider no longer knows about counts as stopped, so termination is
// idempotent and never leaks store entries. Returns nil, nil when the
// session did not exist.
func (m *Manager) Terminate(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, err
	}

	sess.Status = StatusTerminating
	sess.UpdatedAt = m.now()
	if err := m.store.Upsert(ctx, sess, m.cfg.MaxLifetime); err != nil {
		return nil, err
	}

	if err := m.stopSandbox(ctx, sess.SandboxID); err != nil {
		// Surfaced to the explicit caller; the record stays terminating and
		// the call can be retried.
		return nil, err
	}

	sess.Status = StatusTerminated
	if err := m.store.Remove(ctx, sess.SessionID, sess.UserID); err != nil {
		return nil, err
	}
	m.fireRemove(sess.SessionID)
	return sess, nil
}

// stopSandbox blocks until the sandbox is confirmed stopped. "Not found
// remotely" is success, not failure.
func (m *Manager) stopSandbox(ctx context.Context, sandboxID string) error {
	handle, err := m.provider.Get(ctx, sandboxID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil
		}
		return err
	}
	if err := handle.Stop(ctx, true); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil
		}
		return err
	}
	return nil
}

// Cleanup sweeps every stored session and force-terminates the expired and
// idle ones. Each session is handled independently and concurrently: a
// failing remote stop is logged and swallowed, and the store record is
// removed regardless. Returns the number of sessions removed.
func (m *Manager) Cleanup(ctx context.Context) int {
	sessions, err := m.store.All(ctx)
	if err != nil {
		log.Printf("Cleanup: list sessions: %v", err)
		return 0
	}

	now := m.now()
	var wg sync.WaitGroup
	var mu sync.Mutex
	removed := 0

	for _, sess := range sessions {
		pastLifetime := now.Sub(sess.CreatedAt) > m.cfg.MaxLifetime || now.After(sess.ExpiresAt)
		idle := now.Sub(sess.UpdatedAt) > m.cfg.IdleTimeout
		if !pastLifetime && !idle {
			continue
		}

		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if err := m.stopSandbox(ctx, sess.SandboxID); err != nil {
				log.Printf("Cleanup: stop sandbox %s: %v", sess.SandboxID, err)
			}
			if err := m.store.Remove(ctx, sess.SessionID, sess.UserID); err != nil {
				log.Printf("Cleanup: remove session %s: %v", sess.SessionID, err)
				return
			}
			m.fireRemove(sess.SessionID)
			mu.Lock()
			removed++
			mu.Unlock()
		}(sess)
	}
	wg.Wait()
	return removed
}
