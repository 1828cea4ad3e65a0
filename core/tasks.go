package core

import "github.com/pkg/errors"

// MaxTasks is the number of periodic tasks a Tasks instance can hold
const MaxTasks = 16

// maxCatchUp bounds how many missed periods a late task replays before its
// schedule is pulled forward to the present.
const maxCatchUp = 8

// Callback is the body of a periodic task. It runs in interrupt context and
// must complete in bounded time.
type Callback func()

// TaskHandle identifies a periodic task. Zero is never a valid handle.
type TaskHandle uint8

// HardwareTimer is a dedicated timer that invokes a task callback itself
type HardwareTimer interface {
	SetPeriodSubMicros(period uint32)
}

// HardwareTimerProvider hands out dedicated timers (set by platform-specific code)
type HardwareTimerProvider interface {
	// Claim binds timer num to isr. It reports false if the timer
	// does not exist or is already taken.
	Claim(num uint8, isr func()) (HardwareTimer, bool)
}

type task struct {
	name     string
	timer    Timer
	period   uint32 // sub-micro ticks, 0 = idle
	callback Callback
	hw       HardwareTimer
	queued   bool
	last     uint64 // wake time of the last invocation
}

// Tasks runs periodic callbacks at programmable sub-micro periods.
// Tasks dispatch from the shared timer queue (software dispatch) unless
// moved onto a dedicated hardware timer.
type Tasks struct {
	queue      TimerQueue
	tasks      [MaxTasks]task
	count      uint8
	now        uint64
	hwProvider HardwareTimerProvider
}

// NewTasks creates an empty task scheduler
func NewTasks() *Tasks {
	return &Tasks{}
}

var defaultTasks = NewTasks()

// DefaultTasks returns the process-wide scheduler driven by ProcessTimers
func DefaultTasks() *Tasks {
	return defaultTasks
}

// ProcessTimers dispatches the default scheduler at the current system time
func ProcessTimers() int {
	return defaultTasks.Dispatch(GetTime())
}

// SetHardwareTimerProvider registers the platform's dedicated timers
func (ts *Tasks) SetHardwareTimerProvider(p HardwareTimerProvider) {
	Critical(func() {
		ts.hwProvider = p
	})
}

// Add registers a periodic task. A zero period leaves the task idle until
// SetPeriodSubMicros is called.
func (ts *Tasks) Add(period uint32, callback Callback, name string) (TaskHandle, error) {
	if callback == nil {
		return 0, errors.Errorf("task %s: callback is nil", name)
	}

	var handle TaskHandle
	Critical(func() {
		if ts.count >= MaxTasks {
			return
		}
		t := &ts.tasks[ts.count]
		*t = task{name: name, callback: callback}
		t.timer.Handler = func(*Timer) uint8 {
			return ts.fire(t)
		}
		ts.count++
		handle = TaskHandle(ts.count)
	})
	if handle == 0 {
		return 0, errors.Errorf("task %s: all %d task slots in use", name, MaxTasks)
	}

	if period != 0 {
		ts.SetPeriodSubMicros(handle, period)
	}
	return handle, nil
}

func (ts *Tasks) lookup(h TaskHandle) *task {
	if h == 0 || h > TaskHandle(MaxTasks) {
		return nil
	}
	t := &ts.tasks[h-1]
	if t.timer.Handler == nil {
		return nil
	}
	return t
}

// fire runs one software-dispatched invocation (interrupts already excluded)
func (ts *Tasks) fire(t *task) uint8 {
	if t.period == 0 {
		t.queued = false
		return SF_DONE
	}

	t.last = t.timer.WakeTime
	t.callback()

	period := uint64(t.period)
	next := t.timer.WakeTime + period
	if ts.now > next && ts.now-next > period*maxCatchUp {
		next = ts.now + period
	}
	t.timer.WakeTime = next
	return SF_RESCHEDULE
}

// SetPeriodSubMicros changes a task's period. The new period takes effect no
// later than the next scheduled invocation; zero idles the task.
func (ts *Tasks) SetPeriodSubMicros(h TaskHandle, period uint32) {
	t := ts.lookup(h)
	if t == nil {
		return
	}

	Critical(func() {
		t.period = period
		if t.hw != nil {
			t.hw.SetPeriodSubMicros(period)
			return
		}
		if period == 0 {
			// fire drops the task from the queue on its next wake
			return
		}

		now := GetTime()
		wake := now + uint64(period)
		if t.queued && t.last != 0 {
			wake = t.last + uint64(period)
		}
		if wake < now {
			wake = now
		}
		if t.queued {
			if wake >= t.timer.WakeTime {
				return
			}
			ts.queue.remove(&t.timer)
		}
		t.timer.WakeTime = wake
		ts.queue.insert(&t.timer)
		t.queued = true
	})
}

// SetCallback swaps the callback of a task. The swap is atomic with respect
// to dispatch and takes effect by the next invocation.
func (ts *Tasks) SetCallback(h TaskHandle, callback Callback) {
	t := ts.lookup(h)
	if t == nil || callback == nil {
		return
	}
	Critical(func() {
		t.callback = callback
	})
}

// RequestHardwareTimer moves a task onto dedicated hardware timer num.
// It is best effort: false means the task stays on software dispatch.
func (ts *Tasks) RequestHardwareTimer(h TaskHandle, num uint8) bool {
	t := ts.lookup(h)
	if t == nil {
		return false
	}

	var provider HardwareTimerProvider
	var claimed bool
	Critical(func() {
		provider = ts.hwProvider
		claimed = t.hw != nil
	})
	if claimed {
		return true
	}
	if provider == nil {
		return false
	}

	hw, ok := provider.Claim(num, func() {
		if t.period != 0 {
			t.callback()
		}
	})
	if !ok || hw == nil {
		return false
	}

	Critical(func() {
		if t.queued {
			ts.queue.remove(&t.timer)
			t.queued = false
		}
		t.hw = hw
		hw.SetPeriodSubMicros(t.period)
	})
	return true
}

// Dispatch runs every software-dispatched invocation due at now
func (ts *Tasks) Dispatch(now uint64) int {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	ts.now = now
	return ts.queue.dispatch(now)
}

// NextWake returns the earliest pending software wake time
func (ts *Tasks) NextWake() (uint64, bool) {
	var wake uint64
	var ok bool
	Critical(func() {
		wake, ok = ts.queue.next()
	})
	return wake, ok
}

// Period returns the installed period of a task
func (ts *Tasks) Period(h TaskHandle) uint32 {
	t := ts.lookup(h)
	if t == nil {
		return 0
	}
	var period uint32
	Critical(func() {
		period = t.period
	})
	return period
}

// Name returns the name a task was registered with
func (ts *Tasks) Name(h TaskHandle) string {
	t := ts.lookup(h)
	if t == nil {
		return ""
	}
	return t.name
}
