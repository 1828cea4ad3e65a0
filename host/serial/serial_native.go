//go:build !tinygo

package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

// Open opens a native serial port and discards anything already buffered
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}

	p := &NativePort{
		port: port,
		cfg:  cfg,
	}
	if err := p.Flush(); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "flush %s", cfg.Device)
	}
	return p, nil
}

// OpenUART opens device at baud with the default driver timeouts
func OpenUART(device string, baud int) (io.ReadWriter, error) {
	cfg := DefaultConfig(device)
	if baud > 0 {
		cfg.Baud = baud
	}
	p, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input and unsent output
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
