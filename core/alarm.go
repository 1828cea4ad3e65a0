package core

// AlarmSchedule turns a sub-micro period into the wake times of a 32-bit
// microsecond alarm, carrying the sub-microsecond remainder from one wake to
// the next so the average rate stays exact.
type AlarmSchedule struct {
	period uint32
	frac   uint32
	target uint32
}

// SetPeriod changes the period. The next wake is unchanged unless the
// schedule was idle, in which case it restarts one period after now.
// It reports whether an alarm has to be armed.
func (a *AlarmSchedule) SetPeriod(period uint32, now uint32) bool {
	idle := a.period == 0
	a.period = period
	if period == 0 {
		a.frac = 0
		return false
	}
	if idle {
		a.frac = 0
		a.target = now
		a.advance(now)
		return true
	}
	return false
}

// Period returns the installed period, 0 when idle
func (a *AlarmSchedule) Period() uint32 {
	return a.period
}

// Target returns the microsecond time of the next wake
func (a *AlarmSchedule) Target() uint32 {
	return a.target
}

// Next moves the schedule one period on from the wake that just fired and
// returns the new wake. A wake already in the past is pulled to now+1.
func (a *AlarmSchedule) Next(now uint32) uint32 {
	a.advance(now)
	return a.target
}

func (a *AlarmSchedule) advance(now uint32) {
	ticks := a.frac + a.period
	a.target += ticks / SubMicrosPerMicro
	a.frac = ticks % SubMicrosPerMicro
	if int32(a.target-now) <= 0 {
		a.target = now + 1
	}
}
