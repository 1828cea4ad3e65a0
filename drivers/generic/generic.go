// Package generic drives step/dir chips whose microstep resolution is set by
// mode pins (A4988, DRV8825, TMC2209 in standalone mode) or fixed by jumpers.
package generic

import (
	"github.com/pkg/errors"

	"axisdrive/core"
	"axisdrive/drivers/trinamic"
)

// Model describes the mode pin encoding of a chip. Codes maps a microstep
// count to the M2 M1 M0 levels, M0 in bit 0.
type Model struct {
	Name          string
	MaxMicrosteps int
	Codes         map[int]uint8
}

var (
	// Jumpered has no mode pins: the resolution is whatever the board sets
	Jumpered = Model{Name: "generic", MaxMicrosteps: 256}

	A4988 = Model{Name: "a4988", MaxMicrosteps: 16, Codes: map[int]uint8{
		1: 0b000, 2: 0b001, 4: 0b010, 8: 0b011, 16: 0b111,
	}}

	DRV8825 = Model{Name: "drv8825", MaxMicrosteps: 32, Codes: map[int]uint8{
		1: 0b000, 2: 0b001, 4: 0b010, 8: 0b011, 16: 0b100, 32: 0b101,
	}}

	// TMC2209Standalone uses MS1 on M0 and MS2 on M1
	TMC2209Standalone = Model{Name: "tmc2209-standalone", MaxMicrosteps: 64, Codes: map[int]uint8{
		8: 0b00, 32: 0b01, 64: 0b10, 16: 0b11,
	}}
)

// Driver sets microstep resolution through up to three mode pins
type Driver struct {
	model  Model
	gpio   core.GPIODriver
	pins   [3]core.GPIOPin
	modes  trinamic.Modes
	status core.DriverStatus
	axis   uint8
}

// New returns a driver for model. pins are M0, M1 and M2; unused pins are
// core.PinOff. slewing is the slewing microstep count, 0 for none.
func New(model Model, gpio core.GPIODriver, pins [3]core.GPIOPin, slewing int) *Driver {
	return &Driver{
		model: model,
		gpio:  gpio,
		pins:  pins,
		modes: trinamic.Modes{Slewing: slewing},
	}
}

// Info describes the driver
func (d *Driver) Info() core.MicrostepDriverInfo {
	return core.MicrostepDriverInfo{
		Name:          d.model.Name,
		MaxMicrosteps: d.model.MaxMicrosteps,
		SwitchesMode:  d.hasModePins(),
	}
}

func (d *Driver) hasModePins() bool {
	if d.model.Codes == nil {
		return false
	}
	for _, p := range d.pins {
		if p.IsDedicated() {
			return true
		}
	}
	return false
}

// Init configures the mode pins for the tracking resolution
func (d *Driver) Init(axis uint8, microsteps int, current int) error {
	d.axis = axis
	d.modes.Tracking = microsteps
	if err := d.modes.Validate(); err != nil {
		return errors.Wrap(err, d.model.Name)
	}
	if microsteps > d.model.MaxMicrosteps {
		return errors.Errorf("%s: microsteps %d exceed %d", d.model.Name, microsteps, d.model.MaxMicrosteps)
	}
	if !d.hasModePins() {
		return nil
	}
	for _, count := range []int{d.modes.Tracking, d.modes.Slewing} {
		if _, ok := d.model.Codes[count]; count != 0 && !ok {
			return errors.Errorf("%s: no mode pin code for %d microsteps", d.model.Name, count)
		}
	}
	for _, p := range d.pins {
		if err := core.ConfigureOutputEx(d.gpio, p); err != nil {
			return errors.Wrapf(err, "%s: mode pin", d.model.Name)
		}
	}
	return d.apply(d.modes.Tracking)
}

func (d *Driver) apply(microsteps int) error {
	code := d.model.Codes[microsteps]
	for i, p := range d.pins {
		if err := core.WritePinEx(d.gpio, p, code&(1<<i) != 0); err != nil {
			d.status.Fault = true
			return errors.Wrapf(err, "%s: write M%d", d.model.Name, i)
		}
	}
	return nil
}

// MicrostepRatio returns the tracking microstep count
func (d *Driver) MicrostepRatio() int {
	return d.modes.Tracking
}

// ModeSwitchAllowed reports whether the mode pins can select a coarser
// slewing resolution
func (d *Driver) ModeSwitchAllowed() bool {
	return d.hasModePins() && d.modes.SwitchAllowed()
}

// ModeMicrostepTracking restores the tracking resolution
func (d *Driver) ModeMicrostepTracking() {
	if d.ModeSwitchAllowed() {
		_ = d.apply(d.modes.Tracking)
	}
}

// ModeMicrostepSlewing selects the slewing resolution
func (d *Driver) ModeMicrostepSlewing() int {
	if !d.ModeSwitchAllowed() {
		return 1
	}
	if err := d.apply(d.modes.Slewing); err != nil {
		return 1
	}
	return d.modes.Ratio()
}

// ModeDecayTracking is a no-op: decay is fixed in hardware
func (d *Driver) ModeDecayTracking() {}

// ModeDecaySlewing is a no-op: decay is fixed in hardware
func (d *Driver) ModeDecaySlewing() {}

// Power is a no-op: these chips are enabled through the enable pin
func (d *Driver) Power(on bool) {}

// UpdateStatus is a no-op: these chips report nothing
func (d *Driver) UpdateStatus() {}

// Status returns the fault flag from the last pin write
func (d *Driver) Status() core.DriverStatus {
	return d.status
}
