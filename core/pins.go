package core

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParsePin converts a pin name from configuration into a GPIOPin.
// Accepted forms: "off", "shared", "gpio17", "GPIO17" and "17".
// An empty name is the same as "off".
func ParsePin(name string) (GPIOPin, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "off":
		return PinOff, nil
	case "shared":
		return PinShared, nil
	}

	n = strings.TrimPrefix(n, "gpio")
	v, err := strconv.ParseUint(n, 10, 16)
	if err != nil {
		return PinOff, errors.Errorf("invalid pin name %q", name)
	}
	return GPIOPin(v), nil
}

// PinName returns the configuration name of pin
func PinName(pin GPIOPin) string {
	switch pin {
	case PinOff:
		return "off"
	case PinShared:
		return "shared"
	}
	return "gpio" + utoa(uint32(pin))
}
