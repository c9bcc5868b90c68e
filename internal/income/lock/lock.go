// Package lock serialises webhook processing per verification subject.
package lock

import (
	"context"
	"time"
)

const keyPrefix = "verigate:lock:subject:"

// Key builds the lock key for a subject identifier.
func Key(identifier string) string {
	return keyPrefix + identifier
}

// pollInterval bounds how often a waiting caller retries acquisition.
const pollInterval = 25 * time.Millisecond

// waitFor sleeps for d or until ctx is done.
func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
