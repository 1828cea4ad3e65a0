// Package serial opens the serial ports Trinamic UART drivers sit on.
package serial

import (
	"io"
)

// Port represents a serial port interface
type Port interface {
	io.ReadWriteCloser

	// Flush discards buffered input and output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the configuration for a TMC2209 UART
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 20, // a reply takes under 1ms at 115200
	}
}
