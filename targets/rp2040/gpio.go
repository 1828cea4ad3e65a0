//go:build rp2040

package main

import (
	"machine"

	"github.com/pkg/errors"

	"axisdrive/core"
)

// RPGPIODriver implements core.GPIODriver on machine pins
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output driven low
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if !pin.IsDedicated() || pin > 29 {
		return errors.Errorf("no pin %s", core.PinName(pin))
	}
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	// GPIO0 = 0, GPIO1 = 1, etc.
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machinePin.Low()

	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return errors.Errorf("%s is not configured", core.PinName(pin))
	}
	machinePin.Set(value)
	return nil
}
