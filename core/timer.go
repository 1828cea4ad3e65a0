package core

import (
	"math"
	"sync/atomic"
)

// Time base: every scheduler period and wake time is counted in
// sub-microsecond ticks, 16 per microsecond.
const (
	SubMicrosPerMicro  = 16
	SubMicrosPerSecond = 16000000

	// SiderealPeriod is the nominal number of sub-micro ticks in one
	// sidereal second.
	SiderealPeriod = 15956313
)

var (
	systemTicks atomic.Uint64
	bootTime    uint64

	// periodSubMicros holds the measured length of a sidereal second in
	// sub-micro ticks of the local clock, stored as float64 bits.
	periodSubMicros atomic.Uint64
)

func init() {
	periodSubMicros.Store(math.Float64bits(SiderealPeriod))
}

// GetTime returns the current system time in sub-micro ticks
func GetTime() uint64 {
	return systemTicks.Load()
}

// SetTime sets the current system time (called by the platform clock or tests)
func SetTime(ticks uint64) {
	systemTicks.Store(ticks)
}

// GetUptime returns the ticks elapsed since TimerInit
func GetUptime() uint64 {
	return GetTime() - bootTime
}

// TimerFromUS converts microseconds to sub-micro ticks
func TimerFromUS(us uint32) uint64 {
	return uint64(us) * SubMicrosPerMicro
}

// TimerToUS converts sub-micro ticks to microseconds
func TimerToUS(ticks uint64) uint64 {
	return ticks / SubMicrosPerMicro
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = GetTime()
}

// SetPeriodSubMicros records the measured sidereal second of the local clock.
// Values that are not positive and finite are ignored.
func SetPeriodSubMicros(period float64) {
	if !(period > 0) || math.IsInf(period, 0) {
		return
	}
	periodSubMicros.Store(math.Float64bits(period))
}

// PeriodSubMicros returns the measured sidereal second in sub-micro ticks
func PeriodSubMicros() float64 {
	return math.Float64frombits(periodSubMicros.Load())
}

// ClockCorrection is the factor applied to nominal periods so that rates
// follow the real clock rather than the nominal one.
func ClockCorrection() float64 {
	return SiderealPeriod / PeriodSubMicros()
}
