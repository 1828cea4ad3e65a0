// Package stepdir drives one step/direction stepper axis: it turns a signed
// step frequency into step pulses and direction changes while tracking
// position, taking up backlash and switching the driver between tracking and
// slewing microstep modes.
//
// Each axis has two execution contexts. Control context calls the exported
// methods. The step generator runs as a periodic scheduler callback that can
// preempt control context at any point; control context reaches the shared
// counters only through core.Critical.
package stepdir

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"axisdrive/core"
)

// Waveform selects how a step is drawn on the step pin
type Waveform uint8

const (
	// WaveformPulse sets the step pin once per generator tick and clears it
	// at the start of the next
	WaveformPulse Waveform = iota
	// WaveformSquare spends two ticks on every step, one per level
	WaveformSquare
)

func (w Waveform) String() string {
	if w == WaveformSquare {
		return "square"
	}
	return "pulse"
}

// Direction of motion
type Direction int8

const (
	DirNone Direction = iota
	DirForward
	DirReverse
)

func (d Direction) String() string {
	switch d {
	case DirForward:
		return "forward"
	case DirReverse:
		return "reverse"
	}
	return "none"
}

// Scheduler is the periodic task service the generators run on.
// core.Tasks implements it.
type Scheduler interface {
	Add(period uint32, callback core.Callback, name string) (core.TaskHandle, error)
	SetPeriodSubMicros(h core.TaskHandle, period uint32)
	SetCallback(h core.TaskHandle, callback core.Callback)
	RequestHardwareTimer(h core.TaskHandle, num uint8) bool
}

// Pins is the wiring of one axis
type Pins struct {
	Step         core.GPIOPin
	StepState    bool // level of an asserted step pulse
	Dir          core.GPIOPin
	Enable       core.GPIOPin // may be core.PinOff or core.PinShared
	EnabledState bool         // level that energizes the driver
}

// Settings is the static configuration of one axis
type Settings struct {
	Axis            uint8 // 1-based; axes 1 and 2 may use the fast generators
	Name            string
	Pins            Pins
	Reverse         bool
	SharedDirection bool // direction pin wired in common with other axes
	Waveform        Waveform
	Microsteps      int
	Current         int // mA, 0 = driver default
}

// fastAxes is the number of leading axes that may swap in the fast
// unidirectional generators
const fastAxes = 2

// StepDir is one step/direction axis
type StepDir struct {
	settings Settings
	prefix   string

	gpio   core.GPIODriver
	driver core.MicrostepDriver
	tasks  Scheduler
	logger core.Logger

	taskHandle core.TaskHandle
	isr        [variantCount]core.Callback
	variant    Variant

	// pin levels resolved at Init
	dirFwd, dirRev   bool
	stepSet, stepClr bool
	homeSteps        int32

	ledger ledger

	// control context only
	backlashFrequency        float32
	lastFrequency            float32
	currentFrequency         float32
	lastPeriod               uint32
	backlashStepsStore       int32
	backlashAmountStepsStore int32
}

// New creates an axis. Init must succeed before any motion call.
func New(settings Settings, gpio core.GPIODriver, driver core.MicrostepDriver, tasks Scheduler, logger core.Logger) *StepDir {
	if logger == nil {
		logger = core.NewDebugLogger("")
	}
	s := &StepDir{
		settings: settings,
		prefix:   "axis" + string(rune('0'+settings.Axis%10)) + ": ",
		gpio:     gpio,
		driver:   driver,
		tasks:    tasks,
		logger:   logger,
	}
	s.ledger.c.slewStep = 1
	s.homeSteps = 1

	if settings.Waveform == WaveformSquare {
		s.isr = [variantCount]core.Callback{s.moveSquare, s.moveFFSquare, s.moveFRSquare}
	} else {
		s.isr = [variantCount]core.Callback{s.movePulse, s.moveFFPulse, s.moveFRPulse}
	}
	return s
}

// Axis returns the axis number
func (s *StepDir) Axis() uint8 {
	return s.settings.Axis
}

// Name returns the axis name
func (s *StepDir) Name() string {
	return s.settings.Name
}

// Settings returns the static configuration of the axis
func (s *StepDir) Settings() Settings {
	return s.settings
}

// Init configures the pins and driver and registers the step generator task.
// An error is fatal to the axis: no motion call may follow it.
func (s *StepDir) Init() error {
	p := s.settings.Pins
	if s.gpio == nil || s.driver == nil || s.tasks == nil {
		s.logger.Infof("%snothing to do exiting!", s.prefix)
		return errors.Errorf("axis %d: gpio, driver and scheduler are required", s.settings.Axis)
	}
	if !p.Step.IsDedicated() {
		s.logger.Infof("%snothing to do exiting!", s.prefix)
		return errors.Errorf("axis %d: no step pin", s.settings.Axis)
	}
	if s.settings.SharedDirection && s.fastCapable() {
		return errors.Errorf("axis %d: shared direction pins need an axis above %d", s.settings.Axis, fastAxes)
	}

	s.logger.Debugf("%sinit step=%s, dir=%s, en=%s", s.prefix,
		core.PinName(p.Step), core.PinName(p.Dir), core.PinName(p.Enable))

	// default driver direction state (forward)
	s.dirFwd, s.dirRev = false, true
	if s.settings.Reverse {
		s.dirFwd, s.dirRev = true, false
	}
	s.stepSet = p.StepState
	s.stepClr = !p.StepState

	err := multierr.Combine(
		core.ConfigureOutputEx(s.gpio, p.Dir),
		core.WritePinEx(s.gpio, p.Dir, s.dirFwd),
		s.gpio.ConfigureOutput(p.Step),
		s.gpio.SetPin(p.Step, s.stepClr),
		core.ConfigureOutputEx(s.gpio, p.Enable),
		// driver enabled for possible current calibration
		core.WritePinEx(s.gpio, p.Enable, p.EnabledState),
	)
	if err != nil {
		return errors.Wrapf(err, "axis %d: pin setup", s.settings.Axis)
	}
	s.ledger.c.dirLevel = s.dirFwd

	if err := s.driver.Init(s.settings.Axis, s.settings.Microsteps, s.settings.Current); err != nil {
		return errors.Wrapf(err, "axis %d: driver init", s.settings.Axis)
	}
	if info, ok := s.driver.(interface{ Info() core.MicrostepDriverInfo }); ok {
		s.logger.Debugf("%sdriver %s", s.prefix, info.Info().Name)
	}
	s.homeSteps = int32(s.driver.MicrostepRatio())
	if s.homeSteps < 1 {
		s.homeSteps = 1
	}
	s.logger.Debugf("%ssequencer homes every %d step(s)", s.prefix, s.homeSteps)

	s.Power(false)

	name := "Motor_" + string(rune('0'+s.settings.Axis%10))
	handle, err := s.tasks.Add(0, s.isr[MoveBidirectional], name)
	if err != nil {
		s.logger.Infof("%sstart task to move motor... FAILED!", s.prefix)
		return errors.Wrapf(err, "axis %d: start motor task", s.settings.Axis)
	}
	s.taskHandle = handle
	s.variant = MoveBidirectional
	s.logger.Debugf("%sstart task to move motor... success", s.prefix)

	if s.fastCapable() && !s.tasks.RequestHardwareTimer(handle, s.settings.Axis) {
		s.logger.Warnf("%sno hardware timer, using software dispatch", s.prefix)
	}
	return nil
}

// fastCapable reports whether this axis may swap in the fast generators
func (s *StepDir) fastCapable() bool {
	return s.settings.Axis >= 1 && s.settings.Axis <= fastAxes
}

// Power energizes or releases the motor through the enable pin, or through
// the driver when no dedicated enable pin exists
func (s *StepDir) Power(on bool) {
	en := s.settings.Pins.Enable
	if en.IsDedicated() {
		level := s.settings.Pins.EnabledState
		if !on {
			level = !level
		}
		if err := s.gpio.SetPin(en, level); err != nil {
			s.logger.Warnf("%senable pin: %v", s.prefix, err)
		}
		return
	}
	s.driver.Power(on)
}

// DriverStatus refreshes and returns the driver's status
func (s *StepDir) DriverStatus() core.DriverStatus {
	s.driver.UpdateStatus()
	return s.driver.Status()
}

// SetSlewing hints that a slew is about to start (true) or has ended (false)
// so the driver can change decay mode
func (s *StepDir) SetSlewing(state bool) {
	if state {
		s.driver.ModeDecaySlewing()
	} else {
		s.driver.ModeDecayTracking()
	}
}

// HomeSteps returns the number of microsteps in one full step
func (s *StepDir) HomeSteps() int32 {
	return s.homeSteps
}
