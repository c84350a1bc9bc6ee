// Package resilience holds small retry helpers used around Cosmos DB calls.
package resilience

import (
	"context"
	"time"
)

// Policy controls Retry.
type Policy struct {
	// MaxAttempts is the total number of calls, first one included. Values below 1 mean 1.
	MaxAttempts int
	// Delay is waited between attempts.
	Delay time.Duration
	// ShouldRetry decides whether an error is worth another attempt. Nil retries nothing.
	ShouldRetry func(error) bool
	// OnRetry is called before each wait with the attempt that just failed (1-based).
	OnRetry func(attempt int, err error)
}

// Retry calls fn until it succeeds, the policy gives up or ctx is done.
// It returns the last error of fn, or the context error when cancelled during a delay.
func Retry(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || p.ShouldRetry == nil || !p.ShouldRetry(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
