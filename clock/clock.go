// Package clock provides the time source used by the taskloop session.
//
// The session never reads the wall clock or sleeps directly. It goes through
// a [Clock], so tests can substitute a [Fake] and exercise a thirty-minute
// session without waiting for it.
package clock

import (
	"context"
	"time"
)

// Clock reports the current time and blocks for a fixed interval.
//
// Sleep must return early with ctx.Err() when the context is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// System returns a [Clock] backed by the wall clock.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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
