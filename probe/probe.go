// Package probe implements the dependency readiness checks the entrypoint
// binaries run before handing control to the wrapped service.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrAttemptsExhausted is returned by Waiter.Wait when the target never became
// reachable within the configured attempt budget.
var ErrAttemptsExhausted = errors.New("probe attempts exhausted")

// Checker verifies connectivity to one external dependency.
type Checker interface {
	// Check returns nil once the dependency accepts the probe.
	Check(ctx context.Context) error
	// Target returns a printable description of what is being probed.
	Target() string
}

// Waiter polls a Checker at a fixed cadence until it succeeds or the attempt
// budget runs out. Zero fields fall back to one probe per second, 30 attempts.
type Waiter struct {
	Interval    time.Duration
	MaxAttempts int
	// Timeout bounds a single check. Defaults to Interval so a hung probe
	// cannot stretch the overall wait past Interval*MaxAttempts.
	Timeout time.Duration
}

// Wait probes until the checker succeeds, the context is cancelled, or
// MaxAttempts probes have failed. It returns the number of attempts made; on
// exhaustion the error wraps ErrAttemptsExhausted and the last check error.
func (w *Waiter) Wait(ctx context.Context, c Checker) (int, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	attempts := w.MaxAttempts
	if attempts <= 0 {
		attempts = 30
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = interval
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.Check(attemptCtx)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		log.Printf("Waiting for %s (attempt %d/%d): %v", c.Target(), attempt, attempts, err)
		if attempt == attempts {
			break
		}
		// Sleep only the remainder of the interval so the cadence stays at
		// one probe per interval even when the check itself is slow.
		if remaining := interval - time.Since(started); remaining > 0 {
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(remaining):
			}
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}
	}
	return attempts, fmt.Errorf("%w: %s still unreachable after %d attempts: %v",
		ErrAttemptsExhausted, c.Target(), attempts, lastErr)
}
