package system

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// ExpBackoff calculates an exponential time backup to max duration + a random fraction of 1s
func ExpBackoff(attempts int, max time.Duration) time.Duration {
	delay := time.Duration(math.Exp2(float64(attempts))) * time.Second
	if delay > max || delay <= 0 {
		delay = max
	}
	// randomize a bit
	delay = delay + time.Duration(rand.Float32()*1000)*time.Millisecond
	return delay
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
