package stepdir

import (
	"math"

	"axisdrive/core"
)

// maxPeriodMicros is the longest step period accepted, about 130 seconds.
// Longer periods would overflow the scheduler's 32-bit sub-micro period.
const maxPeriodMicros = 130000000.0

// SetFrequencySteps sets the step rate in steps per second. Negative rates
// move in reverse and zero stops. Rates that cannot be represented stop the
// axis rather than failing.
func (s *StepDir) SetFrequencySteps(frequency float32) {
	// negative frequency, convert to positive and reverse the direction
	var dir int8
	if frequency > 0 {
		dir = 1
	} else if frequency < 0 {
		frequency = -frequency
		dir = -1
	}

	var inBacklash bool
	var mode MicrostepMode
	s.ledger.locked(func(c *counters) {
		inBacklash = c.inBacklash
		mode = c.mode
	})

	// if in backlash override the frequency
	if inBacklash {
		frequency = s.backlashFrequency
	}

	if frequency == s.currentFrequency && mode < ModeSlewingPause {
		s.ledger.locked(func(c *counters) {
			c.step = dir
		})
		return
	}

	s.lastFrequency = frequency

	// change microstep mode and/or swap in fast ISRs as required. This runs
	// before the period is computed so the period matches the new slewStep.
	s.modeSwitch(dir)

	// slewing covers slewStep microsteps per tick, so tick slower
	rate := frequency
	var slewStep int32
	s.ledger.locked(func(c *counters) {
		mode = c.mode
		slewStep = c.slewStep
	})
	if (mode == ModeSlewing || mode == ModeSlewingReady) && slewStep > 1 {
		rate /= float32(slewStep)
	}

	period, ok := s.periodSubMicros(rate)
	if !ok {
		frequency = 0
		dir = 0
		core.RecordTiming(core.EvtPeriodReject, s.settings.Axis, 0, uint32(mode))
	}
	s.lastPeriod = period
	s.currentFrequency = frequency

	// change the motor rate/direction
	s.ledger.locked(func(c *counters) {
		if c.step != dir {
			c.step = 0
		}
	})
	s.tasks.SetPeriodSubMicros(s.taskHandle, period)
	s.ledger.locked(func(c *counters) {
		c.step = dir
	})
	core.RecordTiming(core.EvtPeriodChange, s.settings.Axis, period, uint32(mode))

	s.promoteReady()
}

// periodSubMicros converts a step rate into a generator period in sub-micro
// ticks, corrected for the measured clock rate. ok is false when the rate is
// out of range.
func (s *StepDir) periodSubMicros(rate float32) (uint32, bool) {
	// square waves tick twice per step
	micros := 1000000.0 / float64(rate)
	if s.settings.Waveform == WaveformSquare {
		micros = 500000.0 / float64(rate)
	}

	if math.IsNaN(micros) || math.IsInf(micros, 0) || micros > maxPeriodMicros {
		return 0, false
	}

	period := micros * core.SubMicrosPerMicro * core.ClockCorrection()
	if period >= math.MaxUint32 {
		return 0, false
	}
	rounded := uint32(math.Round(period))
	if rounded == 0 {
		return 0, false
	}
	return rounded, true
}

// FrequencySteps returns the step rate implied by the installed period,
// 0 when the axis is stopped
func (s *StepDir) FrequencySteps() float32 {
	if s.lastPeriod == 0 {
		return 0
	}
	if s.settings.Waveform == WaveformSquare {
		return float32(8000000.0 / float64(s.lastPeriod))
	}
	return float32(16000000.0 / float64(s.lastPeriod))
}

// PeriodSubMicros returns the installed generator period, 0 when stopped
func (s *StepDir) PeriodSubMicros() uint32 {
	return s.lastPeriod
}
