package stepdir

import "axisdrive/core"

// Step generators. Exactly one of them is installed as the axis task at any
// time. They run in interrupt context: no locking, no allocation, no
// blocking, and they are the only writers of motorSteps, backlashSteps and
// direction while the axis moves.

// halted promotes a pending slewing request once the position sits on a full
// step boundary and reports whether the generator must skip this tick
func (s *StepDir) halted(c *counters) bool {
	if c.mode == ModeSlewingRequest && (c.motorSteps+c.backlashSteps)%s.homeSteps == 0 {
		c.mode = ModeSlewingPause
	}
	return c.mode >= ModeSlewingPause
}

func (s *StepDir) writePin(pin core.GPIOPin, level bool) {
	_ = s.gpio.SetPin(pin, level)
}

// writeDir drives the direction pin, skipping redundant writes unless the
// pin is shared with other axes
func (s *StepDir) writeDir(c *counters, level bool) {
	pin := s.settings.Pins.Dir
	if !pin.IsDedicated() {
		return
	}
	if level == c.dirLevel && !s.settings.SharedDirection {
		return
	}
	_ = s.gpio.SetPin(pin, level)
	c.dirLevel = level
}

func (s *StepDir) dirLevel(d Direction) bool {
	if d == DirReverse {
		return s.dirRev
	}
	return s.dirFwd
}

// forward takes one microstep forward, taking up backlash first
func (c *counters) forward() {
	if c.backlashSteps < c.backlashAmountSteps {
		c.inBacklash = true
		c.backlashSteps++
	} else {
		c.inBacklash = false
		c.motorSteps++
	}
}

// reverse takes one microstep in reverse, releasing backlash first
func (c *counters) reverse() {
	if c.backlashSteps > 0 {
		c.inBacklash = true
		c.backlashSteps--
	} else {
		c.inBacklash = false
		c.motorSteps--
	}
}

// decide picks the direction toward the target, advancing a synchronized
// target first
func (c *counters) decide() Direction {
	if c.synchronized && !c.inBacklash {
		c.targetSteps += int32(c.step)
	}
	switch {
	case c.motorSteps > c.targetSteps:
		return DirReverse
	case c.motorSteps < c.targetSteps || c.inBacklash:
		return DirForward
	}
	return DirNone
}

// movePulse is the bidirectional generator for the pulse waveform: clear the
// previous pulse, decide, then possibly start a new pulse, all in one tick
func (s *StepDir) movePulse() {
	c := &s.ledger.c
	step := s.settings.Pins.Step

	s.writePin(step, s.stepClr)
	if s.halted(c) {
		return
	}

	c.direction = c.decide()
	switch c.direction {
	case DirReverse:
		s.writeDir(c, s.dirRev)
		c.reverse()
	case DirForward:
		s.writeDir(c, s.dirFwd)
		c.forward()
	default:
		return
	}
	s.writePin(step, s.stepSet)
}

// moveSquare is the bidirectional generator for the square waveform: one tick
// raises the pulse on the latched direction, the next decides the direction
// and lowers the pulse
func (s *StepDir) moveSquare() {
	c := &s.ledger.c
	step := s.settings.Pins.Step

	if s.settings.SharedDirection && c.takeStep {
		s.writeDir(c, s.dirLevel(c.direction))
	}
	if s.halted(c) {
		return
	}

	if c.takeStep {
		c.takeStep = false
		switch c.direction {
		case DirForward:
			c.forward()
			s.writePin(step, s.stepSet)
		case DirReverse:
			c.reverse()
			s.writePin(step, s.stepSet)
		}
		return
	}

	c.takeStep = true
	c.direction = c.decide()
	if !s.settings.SharedDirection && c.direction != DirNone {
		s.writeDir(c, s.dirLevel(c.direction))
	}
	s.writePin(step, s.stepClr)
}

// moveFFPulse advances slewStep microsteps forward per tick while short of the
// target. The direction pin is fixed for as long as it is installed.
func (s *StepDir) moveFFPulse() {
	c := &s.ledger.c
	if s.halted(c) {
		return
	}
	s.writePin(s.settings.Pins.Step, s.stepClr)
	if c.synchronized {
		c.targetSteps += c.slewStep
	}
	if c.motorSteps < c.targetSteps {
		c.motorSteps += c.slewStep
		s.writePin(s.settings.Pins.Step, s.stepSet)
	}
}

// moveFRPulse is moveFFPulse in reverse
func (s *StepDir) moveFRPulse() {
	c := &s.ledger.c
	if s.halted(c) {
		return
	}
	s.writePin(s.settings.Pins.Step, s.stepClr)
	if c.synchronized {
		c.targetSteps -= c.slewStep
	}
	if c.motorSteps > c.targetSteps {
		c.motorSteps -= c.slewStep
		s.writePin(s.settings.Pins.Step, s.stepSet)
	}
}

// moveFFSquare is the square waveform form of moveFFPulse
func (s *StepDir) moveFFSquare() {
	c := &s.ledger.c
	if s.halted(c) {
		return
	}
	if c.takeStep {
		if c.synchronized {
			c.targetSteps += c.slewStep
		}
		if c.motorSteps < c.targetSteps {
			c.motorSteps += c.slewStep
			s.writePin(s.settings.Pins.Step, s.stepSet)
		}
	} else {
		s.writePin(s.settings.Pins.Step, s.stepClr)
	}
	c.takeStep = !c.takeStep
}

// moveFRSquare is the square waveform form of moveFRPulse
func (s *StepDir) moveFRSquare() {
	c := &s.ledger.c
	if s.halted(c) {
		return
	}
	if c.takeStep {
		if c.synchronized {
			c.targetSteps -= c.slewStep
		}
		if c.motorSteps > c.targetSteps {
			c.motorSteps -= c.slewStep
			s.writePin(s.settings.Pins.Step, s.stepSet)
		}
	} else {
		s.writePin(s.settings.Pins.Step, s.stepClr)
	}
	c.takeStep = !c.takeStep
}
