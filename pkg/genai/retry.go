package genai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"scrape-gate/pkg/utils"
)

// RetryConfig controls WithRetry. MaxRetries counts extra attempts after the
// first; zero disables retrying.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ShouldRetryFunc reports whether a failed request is worth repeating.
type ShouldRetryFunc func(error) bool

// IsRetryable rejects cancellations, deadlines and credential failures.
// Everything else (rate limits, transport hiccups, empty answers) is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return utils.CategorizeError(err) != "Backend_Auth"
}

// WithRetry repeats failed requests with exponential backoff.
func WithRetry(cfg RetryConfig, shouldRetry ShouldRetryFunc, log *logrus.Entry) Middleware {
	if cfg.MaxRetries == 0 {
		return nil
	}
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}
	return func(next Generator) Generator {
		return &around{next: next, wrap: func(ctx context.Context, call callFunc) (string, error) {
			bo := newBackOffPolicy(ctx, cfg)
			attempt := 0
			op := func() (string, error) {
				attempt++
				out, err := call(ctx)
				if err == nil {
					return out, nil
				}
				if !shouldRetry(err) {
					return "", backoff.Permanent(err)
				}
				return "", err
			}
			notify := func(err error, wait time.Duration) {
				log.WithFields(logrus.Fields{
					"attempt":  attempt,
					"wait":     wait,
					"category": utils.CategorizeError(err),
				}).Warnf("Backend request failed, retrying: %v", err)
			}
			return backoff.RetryNotifyWithData[string](op, bo, notify)
		}}
	}
}

func newBackOffPolicy(ctx context.Context, cfg RetryConfig) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.MaxElapsedTime = 0 // bounded by MaxRetries instead
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}
