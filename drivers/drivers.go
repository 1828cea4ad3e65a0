// Package drivers builds the microstep driver of each configured axis.
package drivers

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	tinydrivers "tinygo.org/x/drivers"

	"axisdrive/config"
	"axisdrive/core"
	"axisdrive/drivers/generic"
	"axisdrive/drivers/tmc2130"
	"axisdrive/drivers/tmc2209"
)

// UARTOpener opens a serial port
type UARTOpener func(name string, baud int) (io.ReadWriter, error)

// SPIOpener opens an SPI bus at a clock rate in Hz
type SPIOpener func(bus string, hz float64) (tinydrivers.SPI, error)

// Buses opens the buses drivers are attached to. Each bus is opened once
// and shared by every driver on it.
type Buses struct {
	GPIO core.GPIODriver
	UART UARTOpener
	SPI  SPIOpener

	uarts map[string]io.ReadWriter
	spis  map[string]tinydrivers.SPI
}

// Factory returns a function building the driver of one axis
func (b *Buses) Factory() func(cfg config.AxisConfig) (core.MicrostepDriver, error) {
	return b.New
}

// New builds the driver for cfg
func (b *Buses) New(cfg config.AxisConfig) (core.MicrostepDriver, error) {
	d := cfg.Driver
	switch d.Model {
	case config.ModelGeneric, "":
		return generic.New(generic.Jumpered, b.GPIO, [3]core.GPIOPin{core.PinOff, core.PinOff, core.PinOff}, 0), nil
	case config.ModelA4988:
		return b.modePins(generic.A4988, d)
	case config.ModelDRV8825:
		return b.modePins(generic.DRV8825, d)
	case config.ModelTMC2209S:
		return b.modePins(generic.TMC2209Standalone, d)
	case config.ModelTMC2209:
		bus, err := b.uart(d.UART, d.Baud)
		if err != nil {
			return nil, err
		}
		return tmc2209.New(bus, d.Address, d.UARTEcho, d.SenseOhms, d.MicrostepsSlewing), nil
	case config.ModelTMC2130:
		bus, err := b.spi(d.SPIBus, float64(d.SPIFrequency))
		if err != nil {
			return nil, err
		}
		cs, err := core.ParsePin(d.ChipSelect)
		if err != nil {
			return nil, err
		}
		return tmc2130.New(bus, b.GPIO, cs, d.SenseOhms, d.MicrostepsSlewing), nil
	}
	return nil, errors.Errorf("unknown driver model %q", d.Model)
}

func (b *Buses) modePins(model generic.Model, d config.DriverConfig) (core.MicrostepDriver, error) {
	var pins [3]core.GPIOPin
	for i, name := range []string{d.M0, d.M1, d.M2} {
		p, err := core.ParsePin(name)
		if err != nil {
			return nil, errors.Wrapf(err, "m%d", i)
		}
		pins[i] = p
	}
	return generic.New(model, b.GPIO, pins, d.MicrostepsSlewing), nil
}

func (b *Buses) uart(name string, baud int) (io.ReadWriter, error) {
	if port, ok := b.uarts[name]; ok {
		return port, nil
	}
	if b.UART == nil {
		return nil, errors.New("no UART available")
	}
	port, err := b.UART(name, baud)
	if err != nil {
		return nil, errors.Wrapf(err, "open uart %s", name)
	}
	if b.uarts == nil {
		b.uarts = make(map[string]io.ReadWriter)
	}
	b.uarts[name] = port
	return port, nil
}

func (b *Buses) spi(name string, hz float64) (tinydrivers.SPI, error) {
	if bus, ok := b.spis[name]; ok {
		return bus, nil
	}
	if b.SPI == nil {
		return nil, errors.New("no SPI available")
	}
	bus, err := b.SPI(name, hz)
	if err != nil {
		return nil, errors.Wrapf(err, "open spi %s", name)
	}
	if b.spis == nil {
		b.spis = make(map[string]tinydrivers.SPI)
	}
	b.spis[name] = bus
	return bus, nil
}

// Close closes every bus that implements io.Closer
func (b *Buses) Close() error {
	var err error
	for _, port := range b.uarts {
		if c, ok := port.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	for _, bus := range b.spis {
		if c, ok := bus.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
