package session

import (
	"context"
	"sync"
	"time"
)

// Store is the single source of truth for session state. Implementations
// must keep the per-user index consistent with the primary record; a dangling
// id in the index is a harmless miss for ListByUser, never an error.
type Store interface {
	// Get returns nil, nil when the session is absent.
	Get(ctx context.Context, sessionID string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
	Upsert(ctx context.Context, sess *Session, ttl time.Duration) error
	Remove(ctx context.Context, sessionID, userID string) error
	All(ctx context.Context) ([]*Session, error)
}

// MemoryStore is the single-process backend. It does not enforce TTLs
// itself; the cleanup sweep removes expired sessions.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*Session
	userIndex map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*Session),
		userIndex: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.records[sessionID]
	if !ok {
		return nil, nil
	}
	return sess.clone(), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userIndex[userID]
	result := make([]*Session, 0, len(ids))
	for id := range ids {
		if sess, ok := s.records[id]; ok {
			result = append(result, sess.clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) Upsert(_ context.Context, sess *Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.userIndex[sess.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.userIndex[sess.UserID] = ids
	}
	ids[sess.SessionID] = struct{}{}
	s.records[sess.SessionID] = sess.clone()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	if ids, ok := s.userIndex[userID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(s.userIndex, userID)
		}
	}
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Session, 0, len(s.records))
	for _, sess := range s.records {
		result = append(result, sess.clone())
	}
	return result, nil
}

var _ Store = (*MemoryStore)(nil)
