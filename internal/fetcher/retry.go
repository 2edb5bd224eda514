package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// Retry calls f until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. Waits double after each failure, capped at MaxWait.
func Retry(ctx context.Context, cfg RetryConfig, sleeper Sleeper, f func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	wait := cfg.InitialWait

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = f(ctx); err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts || !Retryable(err) {
			break
		}

		sleepDur := wait
		if cfg.Jitter && wait > 0 {
			sleepDur = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if cfg.MaxWait > 0 && sleepDur > cfg.MaxWait {
			sleepDur = cfg.MaxWait
		}
		slog.Warn("retrying after error", "attempt", attempt, "wait", sleepDur, "error", err)
		if serr := sleeper.Sleep(ctx, sleepDur); serr != nil {
			return serr
		}

		wait *= 2
		if cfg.MaxWait > 0 && wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}
	return err
}

// Retryable reports whether err is worth another attempt: client errors
// other than 429 and context cancellation are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
