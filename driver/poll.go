package driver

import (
	"context"
	"time"
)

// pollInterval is how often poll re-evaluates its condition.
const pollInterval = 100 * time.Millisecond

// poll evaluates cond until it reports true, returns an error, or timeout
// elapses. The condition is always evaluated at least once.
func poll(ctx context.Context, timeout time.Duration, cond func() (bool, error)) error {
	done, err := cond()
	if err != nil || done {
		return err
	}
	if timeout <= 0 {
		return ErrTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	interval := min(pollInterval, timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrTimeout
		case <-ticker.C:
		}
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
