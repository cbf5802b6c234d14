package genai

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of backend requests in flight at once.
type Limiter struct {
	sem   *semaphore.Weighted
	limit int64
}

// NewLimiter returns nil for a non-positive limit (unlimited).
func NewLimiter(maxInflight int) *Limiter {
	if maxInflight <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(maxInflight)), limit: int64(maxInflight)}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	l.sem.Release(1)
}

// Pacer spaces request starts at least minInterval apart, with +/-10% jitter
// so bursts from many tasks do not line up.
type Pacer struct {
	mu          sync.Mutex
	next        time.Time // earliest start for the next request
	minInterval time.Duration
	log         *logrus.Entry
}

// NewPacer returns nil for a non-positive interval (no pacing).
func NewPacer(minInterval time.Duration, log *logrus.Entry) *Pacer {
	if minInterval <= 0 {
		return nil
	}
	return &Pacer{minInterval: minInterval, log: log}
}

// Wait reserves the next start slot and sleeps until it arrives.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	start := p.next
	if start.Before(now) {
		start = now
	}
	p.next = start.Add(jittered(p.minInterval))
	p.mu.Unlock()

	sleep := time.Until(start)
	if sleep <= 0 {
		return nil
	}
	p.log.WithField("sleep", sleep).Debug("Pacing backend request")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// jittered returns d adjusted by a random amount in [-10%, +10%).
func jittered(d time.Duration) time.Duration {
	jitterRange := int64(d) / 5 // 20% range width for +/-10%
	if jitterRange <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(jitterRange)) - d/10
}

// WithThrottle gates every request through limiter then pacer. Either may be nil.
func WithThrottle(limiter *Limiter, pacer *Pacer) Middleware {
	if limiter == nil && pacer == nil {
		return nil
	}
	return func(next Generator) Generator {
		return &around{next: next, wrap: func(ctx context.Context, call callFunc) (string, error) {
			if err := limiter.Acquire(ctx); err != nil {
				return "", err
			}
			defer limiter.Release()
			if err := pacer.Wait(ctx); err != nil {
				return "", err
			}
			return call(ctx)
		}}
	}
}

// WithTimeout bounds each individual request. Zero disables it.
func WithTimeout(d time.Duration) Middleware {
	if d <= 0 {
		return nil
	}
	return func(next Generator) Generator {
		return &around{next: next, wrap: func(ctx context.Context, call callFunc) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return call(ctx)
		}}
	}
}
