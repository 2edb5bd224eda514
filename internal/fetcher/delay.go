package fetcher

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delay is a randomized pause drawn uniformly from [Floor, Floor+Spread).
type Delay struct {
	Floor  time.Duration
	Spread time.Duration
}

// Next draws the next pause length.
func (d Delay) Next() time.Duration {
	if d.Spread <= 0 {
		return d.Floor
	}
	return d.Floor + time.Duration(rand.Int64N(int64(d.Spread)))
}

// Sleeper pauses between requests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a timer and returns early when ctx is done.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep returns immediately. Used by tests and dry runs.
type NoSleep struct{}

// Sleep only reports context cancellation.
func (NoSleep) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
