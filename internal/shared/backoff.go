package shared

import (
	"context"
	crand "crypto/rand"
	"time"
)

// SleepCtx waits for d or returns false early if ctx is done.
func SleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Backoff returns an exponential delay with up to +50% jitter for retry
// attempt i (0,1,2,...), starting at base: base, 2*base, 4*base...
func Backoff(i int, base time.Duration) time.Duration {
	d := time.Duration(1<<i) * base
	// concurrency-safe jitter using crypto/rand
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	f := float64(b[0]) / 255.0
	return d + time.Duration(0.5*f*float64(d))
}
