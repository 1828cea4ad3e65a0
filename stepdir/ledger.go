package stepdir

import "axisdrive/core"

// counters is the state shared between control context and the step
// generator. The generator owns it while running; control context reaches
// it only through (*ledger).locked.
type counters struct {
	motorSteps          int32 // raw motor position, excluding index and backlash
	targetSteps         int32 // destination in the motor frame
	indexSteps          int32 // motor frame to instrument frame offset
	originSteps         int32
	backlashSteps       int32 // slack taken up, 0..backlashAmountSteps
	backlashAmountSteps int32

	step         int8 // commanded direction of travel: -1, 0, +1
	direction    Direction
	inBacklash   bool
	synchronized bool
	slewStep     int32
	mode         MicrostepMode

	takeStep bool // square waveform phase
	dirLevel bool // level last written to the direction pin
}

type ledger struct {
	c counters
}

// locked runs fn with exclusive access to the counters
func (l *ledger) locked(fn func(c *counters)) {
	core.Critical(func() {
		fn(&l.c)
	})
}

// ResetPositionSteps sets motor and target position to value and zeros the
// index and backlash. Call only while the axis is stopped.
func (s *StepDir) ResetPositionSteps(value int32) {
	s.ledger.locked(func(c *counters) {
		c.indexSteps = 0
		c.motorSteps = value
		c.targetSteps = value
		c.backlashSteps = 0
	})
}

// ResetTargetToMotorPosition snaps the target to the motor position so no
// further motion is pending
func (s *StepDir) ResetTargetToMotorPosition() {
	s.ledger.locked(func(c *counters) {
		c.targetSteps = c.motorSteps
	})
}

// MotorPositionSteps returns the motor position including taken-up backlash
func (s *StepDir) MotorPositionSteps() int32 {
	var steps int32
	s.ledger.locked(func(c *counters) {
		steps = c.motorSteps + c.backlashSteps
	})
	return steps
}

// InstrumentCoordinateSteps returns the position in the instrument frame
func (s *StepDir) InstrumentCoordinateSteps() int32 {
	var steps int32
	s.ledger.locked(func(c *counters) {
		steps = c.motorSteps + c.indexSteps
	})
	return steps
}

// SetInstrumentCoordinateSteps sets the index so the current position reads value
func (s *StepDir) SetInstrumentCoordinateSteps(value int32) {
	s.ledger.locked(func(c *counters) {
		c.indexSteps = value - c.motorSteps
	})
}

// SetOriginCoordinateSteps marks the current motor position as the origin
// for OriginOrTargetDistanceSteps
func (s *StepDir) SetOriginCoordinateSteps() {
	s.ledger.locked(func(c *counters) {
		c.originSteps = c.motorSteps
	})
}

// SetTargetCoordinateSteps sets the target in the instrument frame
func (s *StepDir) SetTargetCoordinateSteps(value int32) {
	s.ledger.locked(func(c *counters) {
		c.targetSteps = value - c.indexSteps
	})
}

// TargetCoordinateSteps returns the target in the instrument frame
func (s *StepDir) TargetCoordinateSteps() int32 {
	var steps int32
	s.ledger.locked(func(c *counters) {
		steps = c.targetSteps + c.indexSteps
	})
	return steps
}

// TargetDistanceSteps returns target minus motor position; positive means
// forward motion is needed
func (s *StepDir) TargetDistanceSteps() int32 {
	var dist int32
	s.ledger.locked(func(c *counters) {
		dist = c.targetSteps - c.motorSteps
	})
	return dist
}

// OriginOrTargetDistanceSteps returns the distance to the origin or to the
// target, whichever is closer
func (s *StepDir) OriginOrTargetDistanceSteps() int32 {
	var origin, target, motor int32
	s.ledger.locked(func(c *counters) {
		origin, target, motor = c.originSteps, c.targetSteps, c.motorSteps
	})
	distanceOrigin := abs32(origin - motor)
	distanceTarget := abs32(target - motor)
	if distanceOrigin < distanceTarget {
		return distanceOrigin
	}
	return distanceTarget
}

// SetTargetCoordinateParkSteps sets the target near value (instrument frame)
// so the raw target lands on a multiple of 4*modulo, which keeps a cogged
// motor on a detent when it is powered off. modulo is the number of steps in
// one mechanical cycle of the motor, 0 or 1 when that does not apply.
//
// Call only while the axis is stopped; the result is undefined otherwise.
func (s *StepDir) SetTargetCoordinateParkSteps(value int32, modulo int32) {
	var index int32
	s.ledger.locked(func(c *counters) {
		index = c.indexSteps
	})
	steps := parkAlign(value-index, modulo)
	s.ledger.locked(func(c *counters) {
		c.targetSteps = steps
	})
	s.logger.Debugf("%sSetTargetCoordinateParkSteps at %d (was %d)", s.prefix, steps, value-index)
}

// SetInstrumentCoordinateParkSteps sets the index so value (instrument frame)
// maps onto a multiple of 4*modulo from the current motor position.
//
// Call only while the axis is stopped; the result is undefined otherwise.
func (s *StepDir) SetInstrumentCoordinateParkSteps(value int32, modulo int32) {
	var motor int32
	s.ledger.locked(func(c *counters) {
		motor = c.motorSteps
	})
	steps := parkAlign(value-motor, modulo)
	s.ledger.locked(func(c *counters) {
		c.indexSteps = steps
	})
	s.logger.Debugf("%sSetInstrumentCoordinateParkSteps at %d (was %d)", s.prefix, steps, value-motor)
}

// parkAlign moves steps back two mechanical cycles, then forward to the
// first multiple of 4*modulo, searching at most 4*modulo steps
func parkAlign(steps, modulo int32) int32 {
	steps -= modulo * 2
	cycle := modulo * 4
	for l := int32(0); l < cycle; l++ {
		if steps%cycle == 0 {
			break
		}
		steps++
	}
	return steps
}

// SetSynchronized makes the target advance at the commanded rate
func (s *StepDir) SetSynchronized(state bool) {
	s.ledger.locked(func(c *counters) {
		c.synchronized = state
	})
}

// Synchronized reports whether the target advances at the commanded rate
func (s *StepDir) Synchronized() bool {
	var state bool
	s.ledger.locked(func(c *counters) {
		state = c.synchronized
	})
	return state
}

// Direction returns the current direction of motion
func (s *StepDir) Direction() Direction {
	if s.lastPeriod == 0 {
		return DirNone
	}
	var step int8
	s.ledger.locked(func(c *counters) {
		step = c.step
	})
	switch step {
	case 1:
		return DirForward
	case -1:
		return DirReverse
	}
	return DirNone
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
