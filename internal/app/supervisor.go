package app

import (
	"context"
	"time"

	"github.com/precambrien/alisbot/internal/state"
)

const (
	defaultReconnectBase = 2 * time.Second
	maxBackoff           = 30 * time.Second
)

// supervise keeps the instance connected until ctx is done, reconnecting
// with exponential backoff. A connection that reached registration resets
// the backoff.
func (i *instance) supervise(ctx context.Context) error {
	base := i.base
	if base <= 0 {
		base = defaultReconnectBase
	}
	for {
		registered, err := i.session.Run(ctx)
		i.metrics.Connection(registered)
		if ctx.Err() != nil {
			return i.stopped()
		}

		failures := i.store.RecordFailure(i.name, err)
		delay := calculateBackoff(failures-1, base)
		i.log.Warn("session ended, reconnecting",
			"error", err,
			"registered", registered,
			"failures", failures,
			"retry_in", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return i.stopped()
		case <-timer.C:
		}
	}
}

func (i *instance) stopped() error {
	i.store.SetPhase(i.name, state.PhaseStopped, "")
	i.log.Info("session stopped")
	return nil
}

// calculateBackoff returns the delay before the next attempt given the
// number of previous consecutive failures, doubling from base up to
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for n := 0; n < failures; n++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
