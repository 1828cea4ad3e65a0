package stepdir

import "axisdrive/core"

// MicrostepMode is the state of the tracking/slewing mode switch.
// The order is significant: states are compared with < and >=.
type MicrostepMode uint8

const (
	ModeTracking MicrostepMode = iota
	ModeTrackingReady
	ModeSlewing
	ModeSlewingRequest // waiting for a full step boundary
	ModeSlewingPause   // generator idle while the driver is reconfigured
	ModeSlewingReady
)

func (m MicrostepMode) String() string {
	switch m {
	case ModeTracking:
		return "tracking"
	case ModeTrackingReady:
		return "tracking-ready"
	case ModeSlewing:
		return "slewing"
	case ModeSlewingRequest:
		return "slewing-request"
	case ModeSlewingPause:
		return "slewing-pause"
	case ModeSlewingReady:
		return "slewing-ready"
	}
	return "unknown"
}

// Variant selects which step generator is installed as the axis task
type Variant uint8

const (
	MoveBidirectional Variant = iota
	MoveFastForward
	MoveFastReverse
	variantCount
)

func (v Variant) String() string {
	switch v {
	case MoveFastForward:
		return "fast-forward"
	case MoveFastReverse:
		return "fast-reverse"
	}
	return "bidirectional"
}

// Mode returns the state of the microstep mode switch
func (s *StepDir) Mode() MicrostepMode {
	var mode MicrostepMode
	s.ledger.locked(func(c *counters) {
		mode = c.mode
	})
	return mode
}

// Variant returns the installed step generator
func (s *StepDir) Variant() Variant {
	return s.variant
}

// SlewStep returns the microsteps advanced per fast generator tick
func (s *StepDir) SlewStep() int32 {
	var step int32
	s.ledger.locked(func(c *counters) {
		step = c.slewStep
	})
	return step
}

func (s *StepDir) setMode(mode MicrostepMode) {
	var from MicrostepMode
	s.ledger.locked(func(c *counters) {
		from = c.mode
		c.mode = mode
	})
	if from != mode {
		core.RecordTiming(core.EvtModeChange, s.settings.Axis, uint32(from), uint32(mode))
	}
}

// modeSwitchAllowed reports whether the driver may change microstep mode.
// Only axes with fast generators change resolution: the bidirectional
// generator always counts one microstep per pulse.
func (s *StepDir) modeSwitchAllowed() bool {
	return s.fastCapable() && s.driver.ModeSwitchAllowed()
}

// modeSwitch advances the tracking/slewing state machine for lastFrequency.
// dir is the sign of the commanded rate.
func (s *StepDir) modeSwitch(dir int8) {
	var mode MicrostepMode
	var inBacklash bool
	s.ledger.locked(func(c *counters) {
		mode = c.mode
		inBacklash = c.inBacklash
	})

	if s.lastFrequency <= s.backlashFrequency*2 {
		if mode >= ModeSlewing {
			if s.modeSwitchAllowed() {
				s.logger.Debugf("%smode switch tracking set", s.prefix)
				s.driver.ModeMicrostepTracking()
				core.RecordTiming(core.EvtDriverMode, s.settings.Axis, 0, 1)
			}

			if s.enableMoveFast(false, dir) {
				s.logger.Debugf("%shigh speed ISR swapped out at %g steps/sec.", s.prefix, s.lastFrequency)
			}

			s.setMode(ModeTrackingReady)
		}
		return
	}

	switch {
	case mode == ModeTracking && !inBacklash:
		s.setMode(ModeSlewingRequest)

	case mode == ModeSlewingPause:
		if s.modeSwitchAllowed() {
			s.logger.Debugf("%smode switch slewing set", s.prefix)
			slewStep := int32(s.driver.ModeMicrostepSlewing())
			if slewStep < 1 {
				slewStep = 1
			}
			s.ledger.locked(func(c *counters) {
				c.slewStep = slewStep
			})
			core.RecordTiming(core.EvtDriverMode, s.settings.Axis, 1, uint32(slewStep))
		}

		if s.enableMoveFast(true, dir) {
			s.logger.Debugf("%shigh speed ISR swapped in at %g steps/sec.", s.prefix, s.lastFrequency)
		}

		s.setMode(ModeSlewingReady)
	}
}

// promoteReady finishes a switch once the driver has been reconfigured
func (s *StepDir) promoteReady() {
	var from, to MicrostepMode
	s.ledger.locked(func(c *counters) {
		from = c.mode
		switch c.mode {
		case ModeTrackingReady:
			c.mode = ModeTracking
		case ModeSlewingReady:
			c.mode = ModeSlewing
		}
		to = c.mode
	})
	if from != to {
		core.RecordTiming(core.EvtModeChange, s.settings.Axis, uint32(from), uint32(to))
	}
}

// enableMoveFast swaps the fast unidirectional generator for the direction
// of travel in (true) or the bidirectional generator back (false). dir is
// the commanded rate sign. It reports false on axes without fast generators.
func (s *StepDir) enableMoveFast(fast bool, dir int8) bool {
	if !s.fastCapable() {
		return false
	}

	v := MoveBidirectional
	if fast {
		var direction Direction
		s.ledger.locked(func(c *counters) {
			direction = c.travel(dir)
			// the fast generators never touch the direction pin
			c.direction = direction
			s.writeDir(c, s.dirLevel(direction))
		})
		v = MoveFastForward
		if direction == DirReverse {
			v = MoveFastReverse
		}
	} else {
		// the square generator decides again before its next edge
		s.ledger.locked(func(c *counters) {
			c.takeStep = false
		})
	}

	s.tasks.SetCallback(s.taskHandle, s.isr[v])
	s.variant = v
	core.RecordTiming(core.EvtISRSwap, s.settings.Axis, uint32(v), 0)
	return true
}

// travel returns the direction the fast generator must run in: the
// commanded sign when the target follows the rate, otherwise toward the
// target. The latched direction breaks ties.
func (c *counters) travel(dir int8) Direction {
	if c.synchronized && dir != 0 {
		if dir < 0 {
			return DirReverse
		}
		return DirForward
	}
	switch {
	case c.targetSteps > c.motorSteps:
		return DirForward
	case c.targetSteps < c.motorSteps:
		return DirReverse
	}
	return c.direction
}
