package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// Pin sentinels. Neither is ever configured or written.
const (
	// PinOff means the signal is not wired
	PinOff GPIOPin = 0xFFFFFFFF
	// PinShared means the signal is wired in common with other axes
	// (an enable line shared by every driver, for example)
	PinShared GPIOPin = 0xFFFFFFFE
)

// IsDedicated reports whether the pin is a real, unshared pin
func (p GPIOPin) IsDedicated() bool {
	return p != PinOff && p != PinShared
}

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	// Called from step generators, so it must not block
	SetPin(pin GPIOPin, value bool) error
}

// ConfigureOutputEx configures pin unless it is a sentinel
func ConfigureOutputEx(d GPIODriver, pin GPIOPin) error {
	if !pin.IsDedicated() {
		return nil
	}
	return d.ConfigureOutput(pin)
}

// WritePinEx writes pin unless it is a sentinel
func WritePinEx(d GPIODriver, pin GPIOPin, value bool) error {
	if !pin.IsDedicated() {
		return nil
	}
	return d.SetPin(pin, value)
}
