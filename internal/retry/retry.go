// Package retry polls a condition with exponential backoff.
//
// It is used where another process must produce something asynchronously,
// such as a JVM creating its attach socket after being signaled. Failed
// operations are never retried here; only readiness checks are repeated.
//
//	cfg := retry.Config{
//	    InitialBackoff: 20 * time.Millisecond,
//	    MaxBackoff:     500 * time.Millisecond,
//	}
//
//	ctx, cancel := context.WithTimeout(ctx, 6*time.Second)
//	defer cancel()
//
//	err := retry.Until(ctx, cfg, func() (bool, error) {
//	    return socketExists(path), nil
//	})
//
// The delay before check n (n >= 1) is InitialBackoff * 2^(n-1), capped at
// MaxBackoff. The first check runs immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNotReady is returned when the condition never held before the context
// ended.
var ErrNotReady = errors.New("condition not met")

// Config defines the polling behavior.
type Config struct {
	// InitialBackoff is the delay before the second check. Must be greater than 0.
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay. Zero means no cap.
	MaxBackoff time.Duration
}

// CheckFunc reports whether the awaited condition holds. A non-nil error stops
// polling immediately and is returned as is.
type CheckFunc func() (bool, error)

// Until runs check until it reports true, returns an error or ctx is done. A
// done context is reported as ErrNotReady wrapping the context error.
func Until(ctx context.Context, cfg Config, check CheckFunc) error {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(calculateBackoff(cfg, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
			case <-timer.C:
			}
		}

		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// calculateBackoff computes the delay preceding check number attempt+1.
func calculateBackoff(cfg Config, attempt int) time.Duration {
	multiplier := math.Pow(2, float64(attempt-1))
	backoff := time.Duration(multiplier * float64(cfg.InitialBackoff))

	if cfg.MaxBackoff > 0 && (backoff > cfg.MaxBackoff || backoff <= 0) {
		backoff = cfg.MaxBackoff
	}

	return backoff
}
