package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint64
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerQueue is a list of timers sorted by WakeTime.
// Callers serialize access with DisableInterrupts.
type TimerQueue struct {
	head *Timer
}

// insert adds a timer in sorted order by WakeTime
func (q *TimerQueue) insert(t *Timer) {
	if q.head == nil || t.WakeTime < q.head.WakeTime {
		t.Next = q.head
		q.head = t
		return
	}

	current := q.head
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// remove unlinks t, reporting whether it was queued
func (q *TimerQueue) remove(t *Timer) bool {
	if q.head == t {
		q.head = t.Next
		t.Next = nil
		return true
	}
	for current := q.head; current != nil; current = current.Next {
		if current.Next == t {
			current.Next = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// next returns the earliest wake time and whether any timer is queued
func (q *TimerQueue) next() (uint64, bool) {
	if q.head == nil {
		return 0, false
	}
	return q.head.WakeTime, true
}

// dispatch runs every timer due at now, reinserting those that ask for it.
// A handler that reschedules itself at or before now runs again in the
// same pass, so handlers must always advance WakeTime.
func (q *TimerQueue) dispatch(now uint64) int {
	fired := 0
	for q.head != nil && q.head.WakeTime <= now {
		timer := q.head
		q.head = timer.Next
		timer.Next = nil

		fired++
		if timer.Handler(timer) == SF_RESCHEDULE {
			q.insert(timer)
		}
	}
	return fired
}
