package core

import (
	"sync"

	"github.com/pkg/errors"
)

// MemoryGPIO is a GPIODriver that keeps pin levels in memory and counts
// edges. It backs simulation runs and tests.
type MemoryGPIO struct {
	mu         sync.Mutex
	configured map[GPIOPin]bool
	levels     map[GPIOPin]bool
	rising     map[GPIOPin]int
	writes     map[GPIOPin]int
}

// NewMemoryGPIO creates an empty in-memory GPIO driver
func NewMemoryGPIO() *MemoryGPIO {
	return &MemoryGPIO{
		configured: make(map[GPIOPin]bool),
		levels:     make(map[GPIOPin]bool),
		rising:     make(map[GPIOPin]int),
		writes:     make(map[GPIOPin]int),
	}
}

// ConfigureOutput marks pin as an output driven low
func (m *MemoryGPIO) ConfigureOutput(pin GPIOPin) error {
	if !pin.IsDedicated() {
		return errors.Errorf("cannot configure %s as output", PinName(pin))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configured[pin] = true
	m.levels[pin] = false
	return nil
}

// SetPin records the new level of pin
func (m *MemoryGPIO) SetPin(pin GPIOPin, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.configured[pin] {
		return errors.Errorf("%s is not configured as output", PinName(pin))
	}
	if value && !m.levels[pin] {
		m.rising[pin]++
	}
	m.levels[pin] = value
	m.writes[pin]++
	return nil
}

// Level returns the last level written to pin
func (m *MemoryGPIO) Level(pin GPIOPin) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

// Configured reports whether pin was configured as an output
func (m *MemoryGPIO) Configured(pin GPIOPin) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configured[pin]
}

// RisingEdges returns the number of low to high transitions on pin
func (m *MemoryGPIO) RisingEdges(pin GPIOPin) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rising[pin]
}

// Writes returns the number of SetPin calls on pin
func (m *MemoryGPIO) Writes(pin GPIOPin) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[pin]
}
