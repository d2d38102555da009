package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/pharmaintel/core"
)

// InMemoryStore is a volatile SessionStore storing snapshots in a process
// local map. It is safe for concurrent access. Snapshots are cloned on the
// way in and out to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]core.Snapshot
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]core.Snapshot)}
}

// Save stores (or replaces) the snapshot under its session id.
func (s *InMemoryStore) Save(_ context.Context, snap core.Snapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("%w: snapshot has no session id", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.SessionID] = snap.Clone()
	return nil
}

// Get returns the archived snapshot or core.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (core.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[sessionID]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("%w: %s", core.ErrNotFound, sessionID)
	}
	return snap.Clone(), nil
}

// List returns snapshots ordered by UpdatedAt descending.
func (s *InMemoryStore) List(_ context.Context, limit int) ([]core.Snapshot, error) {
	s.mu.RLock()
	out := make([]core.Snapshot, 0, len(s.sessions))
	for _, snap := range s.sessions {
		out = append(out, snap.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
