package stepdir

// SetBacklashFrequencySteps sets the rate used while taking up backlash, in
// steps per second. Twice this rate is also the tracking/slewing threshold.
func (s *StepDir) SetBacklashFrequencySteps(frequency float32) {
	s.backlashFrequency = frequency
}

// BacklashFrequencySteps returns the backlash traversal rate
func (s *StepDir) BacklashFrequencySteps() float32 {
	return s.backlashFrequency
}

// SetBacklashSteps sets the amount of mechanical slack to take up on reversal
func (s *StepDir) SetBacklashSteps(value int32) {
	if value < 0 {
		value = 0
	}
	s.ledger.locked(func(c *counters) {
		c.backlashAmountSteps = value
		if c.backlashSteps > value {
			// keep the reported position where it is
			c.motorSteps += c.backlashSteps - value
			c.backlashSteps = value
		}
	})
}

// BacklashSteps returns the configured backlash amount
func (s *StepDir) BacklashSteps() int32 {
	var amount int32
	s.ledger.locked(func(c *counters) {
		amount = c.backlashAmountSteps
	})
	return amount
}

// TakenUpBacklashSteps returns how much of the backlash is currently taken up
func (s *StepDir) TakenUpBacklashSteps() int32 {
	var steps int32
	s.ledger.locked(func(c *counters) {
		steps = c.backlashSteps
	})
	return steps
}

// InBacklash reports whether the last step went to taking up backlash
func (s *StepDir) InBacklash() bool {
	var in bool
	s.ledger.locked(func(c *counters) {
		in = c.inBacklash
	})
	return in
}

// DisableBacklash folds taken-up backlash into the motor position and
// suspends backlash handling until EnableBacklash. The reported motor
// position does not change. Calls do not nest: a second DisableBacklash
// before EnableBacklash replaces the saved state.
func (s *StepDir) DisableBacklash() {
	s.ledger.locked(func(c *counters) {
		s.backlashAmountStepsStore = c.backlashAmountSteps
		c.motorSteps += c.backlashSteps
		s.backlashStepsStore = c.backlashSteps
		c.backlashSteps = 0
		c.backlashAmountSteps = 0
	})
}

// EnableBacklash restores the state saved by DisableBacklash
func (s *StepDir) EnableBacklash() {
	s.ledger.locked(func(c *counters) {
		c.backlashSteps = s.backlashStepsStore
		c.motorSteps -= c.backlashSteps
		c.backlashAmountSteps = s.backlashAmountStepsStore
	})
	s.backlashStepsStore = 0
	s.backlashAmountStepsStore = 0
}
