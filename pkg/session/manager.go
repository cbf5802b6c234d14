package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"scrape-gate/pkg/utils"
)

// Manager tracks batches by ID for the server surfaces.
type Manager struct {
	mu          sync.RWMutex
	batches     map[string]*Batch
	maxRetained int
}

// NewManager creates a manager. maxRetained <= 0 keeps every batch.
func NewManager(maxRetained int) *Manager {
	return &Manager{
		batches:     make(map[string]*Batch),
		maxRetained: maxRetained,
	}
}

// Add registers b and evicts the oldest finished batches beyond the
// retention limit. Batches still loading are never evicted.
func (m *Manager) Add(b *Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
	m.evictLocked()
}

func (m *Manager) evictLocked() {
	if m.maxRetained <= 0 || len(m.batches) <= m.maxRetained {
		return
	}
	finished := make([]*Batch, 0, len(m.batches))
	for _, b := range m.batches {
		if !b.Loading() {
			finished = append(finished, b)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})
	for _, b := range finished {
		if len(m.batches) <= m.maxRetained {
			break
		}
		delete(m.batches, b.ID)
	}
}

// Get returns the batch registered under id.
func (m *Manager) Get(id string) (*Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", utils.ErrBatchNotFound, id)
	}
	return b, nil
}

// List returns registered batches, newest first.
func (m *Manager) List() []*Batch {
	m.mu.RLock()
	out := make([]*Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, b)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel cancels a loading batch. It reports false if the batch had
// already finished.
func (m *Manager) Cancel(id string) (bool, error) {
	b, err := m.Get(id)
	if err != nil {
		return false, err
	}
	return b.Cancel(), nil
}

// CancelAll cancels every loading batch.
func (m *Manager) CancelAll() {
	for _, b := range m.List() {
		b.Cancel()
	}
}

// WaitAll blocks until every registered batch has finished or ctx is done.
func (m *Manager) WaitAll(ctx context.Context) error {
	for _, b := range m.List() {
		if err := b.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
