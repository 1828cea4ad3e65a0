//go:build !tinygo

// Package spi adapts a periph.io SPI port to the tinygo drivers.SPI
// interface used by the Trinamic SPI drivers.
package spi

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

// Bus is an open SPI port
type Bus struct {
	port spi.PortCloser
	conn spi.Conn
}

// Open connects to the SPI port called name ("" for the first one) in
// mode 3, as the TMC2130 requires
func Open(name string, hz float64) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "spi: host init")
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "spi: open %q", name)
	}
	c, err := p.Connect(physic.Frequency(hz*float64(physic.Hertz)), spi.Mode3, 8)
	if err != nil {
		p.Close()
		return nil, errors.Wrapf(err, "spi: connect %q", name)
	}
	return &Bus{port: p, conn: c}, nil
}

// OpenSPI opens a bus for the driver factory
func OpenSPI(name string, hz float64) (drivers.SPI, error) {
	b, err := Open(name, hz)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Tx writes w and reads len(r) bytes in the same transaction
func (b *Bus) Tx(w, r []byte) error {
	return b.conn.Tx(w, r)
}

// Transfer clocks one byte
func (b *Bus) Transfer(w byte) (byte, error) {
	var r [1]byte
	err := b.conn.Tx([]byte{w}, r[:])
	return r[0], err
}

// Close releases the port
func (b *Bus) Close() error {
	return b.port.Close()
}
