package main

import (
	"time"

	"axisdrive/stepdir"
)

// pollInterval is how often the commanded rate is reapplied
const pollInterval = 20 * time.Millisecond

// mover keeps one axis running at a commanded rate. A switch to slewing
// resolution finishes only on a later rate command, so poll reapplies the
// rate for as long as the move lasts.
type mover struct {
	axis *stepdir.StepDir
	rate float32
	goTo bool
}

// newMover returns a mover that runs axis at rate forever (synchronized)
// or, when goTo is set, until it reaches target at |rate|
func newMover(axis *stepdir.StepDir, rate float32, goTo bool, target int32) *mover {
	m := &mover{axis: axis, rate: rate, goTo: goTo}
	if goTo {
		if m.rate < 0 {
			m.rate = -m.rate
		}
		axis.SetTargetCoordinateSteps(target)
		axis.SetSlewing(true)
	} else {
		axis.SetSynchronized(true)
	}
	return m
}

func (m *mover) start() {
	m.axis.SetFrequencySteps(m.rate)
}

// approachSteps is the distance from the target inside which a goto drops to
// tracking resolution so the last microsteps land exactly
func (m *mover) approachSteps() int32 {
	steps := int32(m.rate*float32(pollInterval.Seconds()))*2 + m.axis.HomeSteps()
	return steps
}

// poll reapplies the rate and reports whether a goto has finished
func (m *mover) poll() bool {
	if !m.goTo {
		m.axis.SetFrequencySteps(m.rate)
		return false
	}

	dist := m.axis.TargetDistanceSteps()
	if dist == 0 && !m.axis.InBacklash() {
		m.stop()
		return true
	}
	if dist < 0 {
		dist = -dist
	}

	rate := m.rate
	if slow := m.axis.BacklashFrequencySteps(); dist <= m.approachSteps() && slow > 0 && slow < rate {
		rate = slow
	}
	m.axis.SetFrequencySteps(rate)
	return false
}

func (m *mover) stop() {
	if m.goTo {
		m.axis.SetSlewing(false)
	}
	m.axis.SetFrequencySteps(0)
}
