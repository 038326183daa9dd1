package scheduler

import (
	"context"
	"time"
)

// alarmClock ticks once immediately and then every interval. Ticks are not
// buffered: a tick nobody is ready to receive waits, it is never queued twice.
type alarmClock struct {
	interval time.Duration
	cancel   func()
	C        chan time.Time
}

func newAlarmClock(interval time.Duration) *alarmClock {
	return &alarmClock{
		interval: interval,
		C:        make(chan time.Time),
	}
}

func (a *alarmClock) Start(ctx context.Context) <-chan time.Time {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		defer close(a.C)

		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		if !a.ring(ctx, time.Now()) {
			return
		}
		for {
			select {
			case t := <-ticker.C:
				if !a.ring(ctx, t) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return a.C
}

func (a *alarmClock) ring(ctx context.Context, t time.Time) bool {
	select {
	case a.C <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *alarmClock) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}
