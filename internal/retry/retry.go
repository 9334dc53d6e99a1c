// Package retry provides bounded exponential-backoff retries for the
// network-bound embedding and classifier calls. Retries live here, at the
// client layer; turn-level logic never loops.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config controls the retry behavior.
type Config struct {
	// Attempts is the total number of attempts including the first.
	// Values below 1 are treated as 1.
	Attempts int
	// Delay is the wait before the second attempt; it doubles after each
	// failure up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

// Default suits short-lived HTTP calls to local or nearby services.
var Default = Config{
	Attempts: 3,
	Delay:    250 * time.Millisecond,
	MaxDelay: 2 * time.Second,
}

// Do runs fn up to cfg.Attempts times, backing off between attempts. It
// stops early when fn succeeds or ctx is cancelled; the last error is
// returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Delay <= 0 {
		cfg.Delay = Default.Delay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = Default.MaxDelay
	}

	delay := cfg.Delay
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == cfg.Attempts {
			break
		}

		slog.Debug("retrying after failure",
			"attempt", attempt, "of", cfg.Attempts, "err", lastErr, "delay", delay)

		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
