//go:build !tinygo

// Package gpio drives axis pins on a Linux single board computer through
// periph.io.
package gpio

import (
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"axisdrive/core"
)

// Driver implements core.GPIODriver on periph.io pins named GPIO<n>
type Driver struct {
	mu   sync.RWMutex
	pins map[core.GPIOPin]gpio.PinIO
}

// Open initializes the periph.io host drivers
func Open() (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "gpio: host init")
	}
	return &Driver{pins: make(map[core.GPIOPin]gpio.PinIO)}, nil
}

// ConfigureOutput looks pin up in the periph.io registry and drives it low
func (d *Driver) ConfigureOutput(pin core.GPIOPin) error {
	if !pin.IsDedicated() {
		return errors.Errorf("gpio: %s is not a pin", core.PinName(pin))
	}
	name := "GPIO" + strconv.Itoa(int(pin))
	p := gpioreg.ByName(name)
	if p == nil {
		return errors.Errorf("gpio: no pin %s", name)
	}
	if err := p.Out(gpio.Low); err != nil {
		return errors.Wrapf(err, "gpio: %s", name)
	}

	d.mu.Lock()
	d.pins[pin] = p
	d.mu.Unlock()
	return nil
}

// SetPin drives a configured pin
func (d *Driver) SetPin(pin core.GPIOPin, value bool) error {
	d.mu.RLock()
	p, ok := d.pins[pin]
	d.mu.RUnlock()
	if !ok {
		return errors.Errorf("gpio: %s not configured", core.PinName(pin))
	}
	return p.Out(gpio.Level(value))
}

// Release returns every pin to a high impedance input
func (d *Driver) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pin, p := range d.pins {
		_ = p.In(gpio.Float, gpio.NoEdge)
		delete(d.pins, pin)
	}
}
