// Package terminal implements the command safety gate, the per-session
// ordered event log, and the command executor that drives a session's
// sandbox.
package terminal

import (
	"strings"
	"sync"
	"time"

	"github.com/natemcgrady/web-based-ide/internal/apperr"
)

// Gate validates terminal input and rate-limits it before anything touches
// remote resources. The deny-list is plain substring matching on the
// lower-cased command: defense-in-depth against obvious foot-guns, not an
// isolation guarantee.
type Gate struct {
	maxCommandLength int
	blockedPatterns  []string

	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

type counter struct {
	count   int
	resetAt time.Time
}

func NewGate(maxCommandLength int, blockedPatterns []string) *Gate {
	// Commands are lower-cased before matching, so the patterns must be too
	// or mixed-case policy entries could never match.
	patterns := make([]string, len(blockedPatterns))
	for i, pattern := range blockedPatterns {
		patterns[i] = strings.ToLower(pattern)
	}
	return &Gate{
		maxCommandLength: maxCommandLength,
		blockedPatterns:  patterns,
		counters:         make(map[string]*counter),
		now:              time.Now,
	}
}

// ValidateCommand rejects empty or over-long commands with InvalidInput and
// deny-listed fragments with BlockedPattern.
func (g *Gate) ValidateCommand(command string) error {
	normalized := strings.TrimSpace(command)
	if normalized == "" {
		return apperr.New(apperr.InvalidInput, "command cannot be empty")
	}
	if len(normalized) > g.maxCommandLength {
		return apperr.New(apperr.InvalidInput, "command exceeds allowed length")
	}

	lowered := strings.ToLower(normalized)
	for _, pattern := range g.blockedPatterns {
		if strings.Contains(lowered, pattern) {
			return apperr.Newf(apperr.BlockedPattern, "blocked command pattern detected: %s", pattern)
		}
	}
	return nil
}

// EnforceRateLimit counts calls per key in fixed windows: the first call in
// a window starts it, and the counter resets wholesale once the window
// passes. Callers see brief bursts across window boundaries; that is
// accepted.
func (g *Gate) EnforceRateLimit(key string, limit int, window time.Duration) error {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.counters[key]
	if !ok || now.After(current.resetAt) {
		g.counters[key] = &counter{count: 1, resetAt: now.Add(window)}
		return nil
	}

	if current.count >= limit {
		return apperr.New(apperr.RateLimited, "rate limit exceeded")
	}
	current.count++
	return nil
}

// DropCounters forgets all counters for keys containing the given fragment.
// Used to release per-session counters on termination.
func (g *Gate) DropCounters(fragment string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key := range g.counters {
		if strings.Contains(key, fragment) {
			delete(g.counters, key)
		}
	}
}
