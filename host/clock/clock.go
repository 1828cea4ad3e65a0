//go:build !tinygo

// Package clock runs the software step dispatcher on a host: a goroutine
// that advances the system time from the monotonic clock and fires every
// due task.
package clock

import (
	"context"
	"sync/atomic"
	"time"

	"axisdrive/core"
)

// DefaultMaxSleep bounds the wait between dispatches
const DefaultMaxSleep = time.Millisecond

// Dispatcher drives a core.Tasks from the host clock
type Dispatcher struct {
	tasks    *core.Tasks
	maxSleep time.Duration
	start    time.Time
	fired    atomic.Uint64
}

// New returns a dispatcher for tasks
func New(tasks *core.Tasks) *Dispatcher {
	return &Dispatcher{
		tasks:    tasks,
		maxSleep: DefaultMaxSleep,
	}
}

// SetMaxSleep changes the longest wait between dispatches
func (d *Dispatcher) SetMaxSleep(max time.Duration) {
	if max > 0 {
		d.maxSleep = max
	}
}

// ticks returns the sub-micro ticks elapsed since Run started
func (d *Dispatcher) ticks() uint64 {
	return uint64(time.Since(d.start).Nanoseconds()) * core.SubMicrosPerMicro / 1000
}

// Fired returns the number of task invocations so far
func (d *Dispatcher) Fired() uint64 {
	return d.fired.Load()
}

// Run dispatches until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	d.start = time.Now()
	core.SetTime(0)
	core.TimerInit()

	timer := time.NewTimer(d.maxSleep)
	defer timer.Stop()

	for {
		now := d.ticks()
		core.SetTime(now)
		d.fired.Add(uint64(d.tasks.Dispatch(now)))

		wait := d.maxSleep
		if next, ok := d.tasks.NextWake(); ok {
			if next <= now {
				wait = 0
			} else if w := time.Duration((next - now) * 1000 / core.SubMicrosPerMicro); w < wait {
				wait = w
			}
		}

		if wait == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
