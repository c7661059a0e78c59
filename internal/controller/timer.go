package controller

import (
	"context"
	"time"
)

// Timer suspends a loop between cycles. Delay returns early only when ctx is
// done, with ctx.Err().
type Timer interface {
	Delay(ctx context.Context, d time.Duration) error
}

// SleepTimer is the wall-clock Timer.
type SleepTimer struct{}

func (SleepTimer) Delay(ctx context.Context, d time.Duration) error {
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
