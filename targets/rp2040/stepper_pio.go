//go:build rp2040

package main

// PIO step pulser using tinygo-org/pio: the step generator's set edge queues
// one fixed width pulse and the state machine times it, so pulse width does
// not depend on how soon the next generator tick runs.

import (
	"machine"

	"github.com/pkg/errors"
	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"axisdrive/core"
)

// buildPulseProgram creates the pulse program using AssemblerV0
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                   // 0: pull block
		asm.Set(rp2pio.SetDestPins, 1).Delay(1).Encode(), // 1: set pins, 1 [1]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 2: set pins, 0
		// .wrap
	}
}

const (
	pulseProgramOrigin = 0
	// 125MHz / 125 = 1 cycle per microsecond, a 2us pulse
	pulseClkDiv = 125
)

// PIOGPIO routes step pins to PIO state machines and every other pin to a
// plain GPIO driver
type PIOGPIO struct {
	pio     *rp2pio.PIO
	base    core.GPIODriver
	pulsers map[core.GPIOPin]rp2pio.StateMachine
	dropped map[core.GPIOPin]uint32
	offset  uint8
	loaded  bool
	nextSM  uint8
}

// NewPIOGPIO creates a pulser on pio that falls back to base
func NewPIOGPIO(pio *rp2pio.PIO, base core.GPIODriver) *PIOGPIO {
	return &PIOGPIO{
		pio:     pio,
		base:    base,
		pulsers: make(map[core.GPIOPin]rp2pio.StateMachine),
		dropped: make(map[core.GPIOPin]uint32),
	}
}

// AttachStepPin gives pin a state machine of its own. Only active high
// pulses are generated.
func (g *PIOGPIO) AttachStepPin(pin core.GPIOPin) error {
	if !pin.IsDedicated() {
		return errors.Errorf("pio: %s is not a pin", core.PinName(pin))
	}
	if _, ok := g.pulsers[pin]; ok {
		return nil
	}
	if g.nextSM > 3 {
		return errors.New("pio: no free state machine")
	}

	program := buildPulseProgram()
	if !g.loaded {
		offset, err := g.pio.AddProgram(program, pulseProgramOrigin)
		if err != nil {
			return errors.Wrap(err, "pio: load program")
		}
		g.offset = offset
		g.loaded = true
	}

	sm := g.pio.StateMachine(g.nextSM)
	sm.TryClaim()
	g.nextSM++

	mp := machine.Pin(pin)
	mp.Configure(machine.PinConfig{Mode: g.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(mp, 1)
	cfg.SetWrap(g.offset+uint8(len(program))-1, g.offset)
	cfg.SetClkDivIntFrac(pulseClkDiv, 0)

	// Initialize state machine before setting pin directions
	sm.Init(g.offset, cfg)
	sm.SetPindirsConsecutive(mp, 1, true)
	sm.SetPinsConsecutive(mp, 1, false)
	sm.SetEnabled(true)

	g.pulsers[pin] = sm
	g.dropped[pin] = 0
	return nil
}

// ConfigureOutput configures pin unless a state machine owns it
func (g *PIOGPIO) ConfigureOutput(pin core.GPIOPin) error {
	if _, ok := g.pulsers[pin]; ok {
		return nil
	}
	return g.base.ConfigureOutput(pin)
}

// errPulseDropped is returned when a step pulse finds the TX FIFO full
var errPulseDropped = errors.New("pio: tx fifo full, step pulse dropped")

// SetPin queues a pulse on the set edge of a step pin. The clear edge is
// dropped: the state machine ends the pulse itself.
func (g *PIOGPIO) SetPin(pin core.GPIOPin, value bool) error {
	sm, ok := g.pulsers[pin]
	if !ok {
		return g.base.SetPin(pin, value)
	}
	if !value {
		return nil
	}
	if sm.IsTxFIFOFull() {
		g.dropped[pin]++
		return errPulseDropped
	}
	sm.TxPut(1)
	return nil
}

// Dropped returns the step pulses lost on pin since the last call and
// resets the count
func (g *PIOGPIO) Dropped(pin core.GPIOPin) uint32 {
	var n uint32
	core.Critical(func() {
		n = g.dropped[pin]
		if n != 0 {
			g.dropped[pin] = 0
		}
	})
	return n
}
