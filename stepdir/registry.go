package stepdir

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"axisdrive/config"
	"axisdrive/core"
)

// DriverFactory builds the microstep driver for one configured axis
type DriverFactory func(cfg config.AxisConfig) (core.MicrostepDriver, error)

// Deps are the collaborators shared by every axis
type Deps struct {
	GPIO    core.GPIODriver
	Tasks   Scheduler
	Logger  core.Logger
	Drivers DriverFactory
}

// Registry holds the axes built from an axis table
type Registry struct {
	axes []*StepDir
}

// SettingsFromConfig converts one axis table entry into axis settings
func SettingsFromConfig(cfg config.AxisConfig) (Settings, error) {
	var err error
	pin := func(name, value string) core.GPIOPin {
		p, perr := core.ParsePin(value)
		err = multierr.Append(err, errors.Wrap(perr, name))
		return p
	}

	s := Settings{
		Axis: cfg.Axis,
		Name: cfg.Name,
		Pins: Pins{
			Step:         pin("step_pin", cfg.StepPin),
			StepState:    cfg.StepState != "low",
			Dir:          pin("dir_pin", cfg.DirPin),
			Enable:       pin("enable_pin", cfg.EnablePin),
			EnabledState: cfg.EnableState == "high",
		},
		Reverse:         cfg.Reverse,
		SharedDirection: cfg.SharedDirection,
		Microsteps:      cfg.Driver.Microsteps,
		Current:         int(cfg.Driver.Current),
	}
	if cfg.StepWaveForm == config.WaveformPulse {
		s.Waveform = WaveformPulse
	} else {
		s.Waveform = WaveformSquare
	}
	return s, err
}

// NewRegistry builds and initializes one axis per table entry. Axes that
// fail to build or initialize are left out and their errors returned
// together; the registry is usable for the remaining axes.
func NewRegistry(cfgs []config.AxisConfig, deps Deps) (*Registry, error) {
	r := &Registry{}
	var errs error
	for _, cfg := range cfgs {
		axis, err := buildAxis(cfg, deps)
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.Warnf("axis %d excluded: %v", cfg.Axis, err)
			}
			errs = multierr.Append(errs, err)
			continue
		}
		r.axes = append(r.axes, axis)
	}
	return r, errs
}

func buildAxis(cfg config.AxisConfig, deps Deps) (*StepDir, error) {
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "axis %d", cfg.Axis)
	}
	if deps.Drivers == nil {
		return nil, errors.Errorf("axis %d: no driver factory", cfg.Axis)
	}
	driver, err := deps.Drivers(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "axis %d: driver %s", cfg.Axis, cfg.Driver.Model)
	}

	axis := New(settings, deps.GPIO, driver, deps.Tasks, deps.Logger)
	if err := axis.Init(); err != nil {
		return nil, err
	}
	axis.SetBacklashFrequencySteps(float32(cfg.BacklashFrequency))
	axis.SetBacklashSteps(cfg.BacklashSteps)
	return axis, nil
}

// Axis returns the axis with number n
func (r *Registry) Axis(n uint8) (*StepDir, bool) {
	for _, a := range r.axes {
		if a.Axis() == n {
			return a, true
		}
	}
	return nil, false
}

// ByName returns the axis called name
func (r *Registry) ByName(name string) (*StepDir, bool) {
	for _, a := range r.axes {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Axes returns the initialized axes in table order
func (r *Registry) Axes() []*StepDir {
	return r.axes
}

// Len returns the number of initialized axes
func (r *Registry) Len() int {
	return len(r.axes)
}

// Stop sets every axis to zero frequency and releases the motors
func (r *Registry) Stop() {
	for _, a := range r.axes {
		a.SetFrequencySteps(0)
		a.Power(false)
	}
}
