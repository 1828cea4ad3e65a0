package stepdir

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"axisdrive/config"
	"axisdrive/core"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default().Axes[0]
	cfg.StepWaveForm = config.WaveformPulse
	cfg.EnableState = "high"
	cfg.Driver.Current = 800

	settings, err := SettingsFromConfig(cfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, settings.Axis, test.ShouldEqual, uint8(1))
	test.That(t, settings.Name, test.ShouldEqual, "ra")
	test.That(t, settings.Pins.Step, test.ShouldEqual, core.GPIOPin(2))
	test.That(t, settings.Pins.Dir, test.ShouldEqual, core.GPIOPin(3))
	test.That(t, settings.Pins.Enable, test.ShouldEqual, core.GPIOPin(8))
	test.That(t, settings.Pins.StepState, test.ShouldBeTrue)
	test.That(t, settings.Pins.EnabledState, test.ShouldBeTrue)
	test.That(t, settings.Waveform, test.ShouldEqual, WaveformPulse)
	test.That(t, settings.Microsteps, test.ShouldEqual, 32)
	test.That(t, settings.Current, test.ShouldEqual, 800)

	cfg.StepPin = "pin two"
	cfg.DirPin = "gpio-3"
	_, err = SettingsFromConfig(cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "step_pin")
	test.That(t, err.Error(), test.ShouldContainSubstring, "dir_pin")
}

func TestRegistry(t *testing.T) {
	gpio := core.NewMemoryGPIO()
	sched := &fakeScheduler{hwOK: true}
	drivers := map[uint8]*fakeDriver{}

	cfgs := config.Default().Axes
	cfgs[0].BacklashSteps = 12
	cfgs = append(cfgs, config.AxisConfig{
		Axis:         3,
		Name:         "focus",
		StepPin:      "gpio6",
		DirPin:       "gpio7",
		StepState:    "high",
		EnableState:  "low",
		StepWaveForm: config.WaveformPulse,
		Driver:       config.DriverConfig{Model: config.ModelA4988, Microsteps: 16},
	})

	r, err := NewRegistry(cfgs, Deps{
		GPIO:   gpio,
		Tasks:  sched,
		Logger: golog.NewTestLogger(t),
		Drivers: func(cfg config.AxisConfig) (core.MicrostepDriver, error) {
			if cfg.Axis == 2 {
				return nil, errors.New("no such chip")
			}
			d := &fakeDriver{ratio: 1, slewRatio: 1}
			drivers[cfg.Axis] = d
			return d, nil
		},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "axis 2")
	test.That(t, err.Error(), test.ShouldContainSubstring, "no such chip")
	test.That(t, r.Len(), test.ShouldEqual, 2)
	test.That(t, len(sched.tasks), test.ShouldEqual, 2)

	ra, ok := r.Axis(1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ra.Name(), test.ShouldEqual, "ra")
	test.That(t, ra.BacklashSteps(), test.ShouldEqual, int32(12))
	test.That(t, ra.BacklashFrequencySteps(), test.ShouldEqual, float32(64))
	test.That(t, ra.Settings().Waveform, test.ShouldEqual, WaveformSquare)

	_, ok = r.Axis(2)
	test.That(t, ok, test.ShouldBeFalse)

	focus, ok := r.ByName("focus")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, focus.Axis(), test.ShouldEqual, uint8(3))
	_, ok = r.ByName("dec")
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, r.Axes()[0], test.ShouldEqual, ra)
	test.That(t, r.Axes()[1], test.ShouldEqual, focus)

	focus.SetBacklashFrequencySteps(1e6)
	focus.SetFrequencySteps(100)
	ra.Power(true)
	test.That(t, gpio.Level(core.GPIOPin(8)), test.ShouldBeFalse)

	r.Stop()
	test.That(t, focus.PeriodSubMicros(), test.ShouldEqual, uint32(0))
	test.That(t, gpio.Level(core.GPIOPin(8)), test.ShouldBeTrue)
	// no enable pin, so the driver releases the motor
	test.That(t, drivers[3].powered, test.ShouldBeFalse)
	test.That(t, drivers[3].powerCalls, test.ShouldEqual, 2)
}

func TestRegistryWithoutFactory(t *testing.T) {
	r, err := NewRegistry(config.Default().Axes, Deps{
		GPIO:  core.NewMemoryGPIO(),
		Tasks: &fakeScheduler{},
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no driver factory")
	test.That(t, r.Len(), test.ShouldEqual, 0)
}
