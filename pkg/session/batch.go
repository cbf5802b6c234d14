// Package session owns batches: it fans one submission out into per-URL
// tasks, publishes every slot update, and keeps the current batch plus a
// registry of recent ones.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"scrape-gate/pkg/models"
)

// Event is delivered to a batch observer. Index is the slot that changed,
// or -1 for the initial publication and the final completion event.
// Results is a private copy the observer may keep.
type Event struct {
	BatchID string
	Index   int
	Results []models.UrlResult
	Loading bool
}

// Observer receives batch events in the order the updates were applied.
// It runs on task goroutines and must not block for long.
type Observer func(Event)

// Batch is one submission's result slots and lifecycle.
type Batch struct {
	ID               string
	Mode             models.ProcessingMode
	ExtractionPrompt string
	CreatedAt        time.Time

	mu          sync.RWMutex
	results     []models.UrlResult
	loading     bool
	cancelled   bool
	completedAt time.Time

	notifyMu sync.Mutex // serialises observer calls in update order
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newBatch(parent context.Context, urls []string, mode models.ProcessingMode, extractionPrompt string, observer Observer) *Batch {
	ctx, cancel := context.WithCancel(parent)
	results := make([]models.UrlResult, len(urls))
	for i, u := range urls {
		results[i] = models.NewPendingResult(u)
	}
	return &Batch{
		ID:               uuid.New().String(),
		Mode:             mode,
		ExtractionPrompt: extractionPrompt,
		CreatedAt:        time.Now(),
		results:          results,
		loading:          true,
		observer:         observer,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
	}
}

// Len returns the number of slots.
func (b *Batch) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.results)
}

// Results returns a copy of the current results collection.
func (b *Batch) Results() []models.UrlResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneResults(b.results)
}

// Result returns slot i.
func (b *Batch) Result(i int) (models.UrlResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.results) {
		return models.UrlResult{}, false
	}
	return b.results[i], true
}

// Loading is true until every task has resolved.
func (b *Batch) Loading() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loading
}

// Cancelled reports whether Cancel was called before the batch finished.
func (b *Batch) Cancelled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cancelled
}

// CompletedAt is zero while the batch is loading.
func (b *Batch) CompletedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.completedAt
}

// Done is closed once every slot has resolved and the finish hooks have run.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the batch finishes or ctx ends.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops outstanding work. Slots that have not resolved yet become
// failed with the cancellation message. Cancelling a finished batch is a no-op
// and reports false.
func (b *Batch) Cancel() bool {
	b.mu.Lock()
	if !b.loading {
		b.mu.Unlock()
		return false
	}
	b.cancelled = true
	b.mu.Unlock()
	b.cancel()
	return true
}

// Snapshot is a point-in-time, serialisable view of a batch.
type Snapshot struct {
	ID               string                          `json:"id" yaml:"id"`
	Mode             models.ProcessingMode           `json:"mode" yaml:"mode"`
	ExtractionPrompt string                          `json:"extraction_prompt,omitempty" yaml:"extraction_prompt,omitempty"`
	CreatedAt        time.Time                       `json:"created_at" yaml:"created_at"`
	CompletedAt      *time.Time                      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Loading          bool                            `json:"loading" yaml:"loading"`
	Cancelled        bool                            `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Counts           map[models.ProcessingStatus]int `json:"counts" yaml:"counts"`
	Results          []models.UrlResult              `json:"results" yaml:"results"`
}

// Snapshot captures the batch state under a single lock.
func (b *Batch) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		ID:               b.ID,
		Mode:             b.Mode,
		ExtractionPrompt: b.ExtractionPrompt,
		CreatedAt:        b.CreatedAt,
		Loading:          b.loading,
		Cancelled:        b.cancelled,
		Counts:           models.CountStatuses(b.results),
		Results:          cloneResults(b.results),
	}
	if !b.completedAt.IsZero() {
		t := b.completedAt
		s.CompletedAt = &t
	}
	return s
}

// SnapshotFromRecord renders an archived record in snapshot form.
func SnapshotFromRecord(rec models.BatchRecord) Snapshot {
	s := Snapshot{
		ID:               rec.ID,
		Mode:             rec.Mode,
		ExtractionPrompt: rec.ExtractionPrompt,
		CreatedAt:        rec.CreatedAt,
		Cancelled:        rec.Cancelled,
		Counts:           rec.StatusCounts(),
		Results:          cloneResults(rec.Results),
	}
	if !rec.CompletedAt.IsZero() {
		t := rec.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

// Record converts a batch into its archived form.
func (b *Batch) Record() models.BatchRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return models.BatchRecord{
		ID:               b.ID,
		Mode:             b.Mode,
		ExtractionPrompt: b.ExtractionPrompt,
		CreatedAt:        b.CreatedAt,
		CompletedAt:      b.completedAt,
		Cancelled:        b.cancelled,
		Results:          cloneResults(b.results),
	}
}

// publishInitial announces the all-pending collection.
func (b *Batch) publishInitial() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()
	b.emit(Event{BatchID: b.ID, Index: -1, Results: b.Results(), Loading: true})
}

// resolve replaces slot i with r (snapshot replacement) and notifies.
// A slot is resolved at most once.
func (b *Batch) resolve(i int, r models.UrlResult) bool {
	b.mu.Lock()
	if i < 0 || i >= len(b.results) || b.results[i].Status != models.StatusPending {
		b.mu.Unlock()
		return false
	}
	next := cloneResults(b.results)
	next[i] = r
	b.results = next
	ev := Event{BatchID: b.ID, Index: i, Results: cloneResults(next), Loading: b.loading}
	b.notifyMu.Lock() // taken before releasing mu so events keep update order
	b.mu.Unlock()

	defer b.notifyMu.Unlock()
	b.emit(ev)
	return true
}

// finish clears the loading flag and publishes the final event.
func (b *Batch) finish() {
	b.mu.Lock()
	b.loading = false
	b.completedAt = time.Now()
	ev := Event{BatchID: b.ID, Index: -1, Results: cloneResults(b.results), Loading: false}
	b.notifyMu.Lock()
	b.mu.Unlock()

	b.emit(ev)
	b.notifyMu.Unlock()
	b.cancel() // release the context's resources
}

// markDone releases Wait. It runs after the finish hooks.
func (b *Batch) markDone() { close(b.done) }

func (b *Batch) emit(ev Event) {
	if b.observer != nil {
		b.observer(ev)
	}
}

func cloneResults(in []models.UrlResult) []models.UrlResult {
	out := make([]models.UrlResult, len(in))
	copy(out, in)
	return out
}
