package session

import (
	"context"
	"sync"
)

// Store holds the current batch of a single interactive session.
// Resubmitting replaces the current batch without cancelling the previous
// one; its tasks keep resolving into the old batch object only.
type Store struct {
	orch    *Orchestrator
	manager *Manager

	mu      sync.RWMutex
	current *Batch
}

// NewStore creates a store. manager may be nil.
func NewStore(orch *Orchestrator, manager *Manager) *Store {
	return &Store{orch: orch, manager: manager}
}

// Submit starts a batch and makes it current. Empty input returns
// utils.ErrNoURLs and leaves the current batch untouched.
func (s *Store) Submit(ctx context.Context, sub Submission) (*Batch, error) {
	b, err := s.orch.Start(ctx, sub)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = b
	s.mu.Unlock()
	if s.manager != nil {
		s.manager.Add(b)
	}
	return b, nil
}

// Current returns the current batch, or nil before the first submission.
func (s *Store) Current() *Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
