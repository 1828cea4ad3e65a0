//go:build rp2040

package main

import (
	"io"
	"machine"
	"time"

	"github.com/pkg/errors"
	rp2pio "github.com/tinygo-org/pio/rp2-pio"
	tinydrivers "tinygo.org/x/drivers"

	"axisdrive/config"
	"axisdrive/core"
	"axisdrive/drivers"
	"axisdrive/stepdir"
)

// Default mount: 200 step motor, 32 microsteps, 144:1 worm
const (
	stepsPerRev  = 200 * 32 * 144
	siderealDay  = 86164.0905
	trackingRate = float32(stepsPerRev / siderealDay)
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	UpdateSystemTime()
	core.TimerInit()

	cfg := config.Default()
	core.SetDebugWriter(func(s string) { println(s) })
	core.SetDebugEnabled(cfg.Debug)
	logger := core.NewDebugLogger("")

	gpio := NewPIOGPIO(rp2pio.PIO0, NewRPGPIODriver())
	pulsed := map[uint8]core.GPIOPin{}
	for i := range cfg.Axes {
		a := &cfg.Axes[i]
		if a.StepState != "high" {
			continue
		}
		step, err := core.ParsePin(a.StepPin)
		if err != nil {
			continue
		}
		if err := gpio.AttachStepPin(step); err != nil {
			logger.Warnf("axis %d: %v, stepping from GPIO", a.Axis, err)
			continue
		}
		// one generator tick per step, the state machine ends the pulse
		a.StepWaveForm = config.WaveformPulse
		pulsed[a.Axis] = step
	}

	tasks := core.DefaultTasks()
	tasks.SetHardwareTimerProvider(alarmTimers{})

	buses := &drivers.Buses{GPIO: gpio, UART: openUART, SPI: openSPI}
	reg, err := stepdir.NewRegistry(cfg.Axes, stepdir.Deps{
		GPIO:    gpio,
		Tasks:   tasks,
		Logger:  logger,
		Drivers: buses.Factory(),
	})
	if err != nil {
		logger.Warnf("%v", err)
	}

	if ra, ok := reg.Axis(1); ok {
		ra.Power(true)
		ra.SetSynchronized(true)
		ra.SetFrequencySteps(trackingRate)
		logger.Infof("%s tracking at %g steps/s", ra.Name(), trackingRate)
	}

	var lastCheck uint64
	for {
		UpdateSystemTime()
		core.ProcessTimers()

		if now := core.GetTime(); now-lastCheck >= core.TimerFromUS(100000) {
			lastCheck = now
			for axis, pin := range pulsed {
				if n := gpio.Dropped(pin); n != 0 {
					core.RecordTiming(core.EvtPulseDrop, axis, n, 0)
					logger.Warnf("axis %d: %d step pulses dropped", axis, n)
				}
			}
		}

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

func openUART(name string, baud int) (io.ReadWriter, error) {
	var uart *machine.UART
	switch name {
	case "uart0":
		uart = machine.UART0
	case "uart1":
		uart = machine.UART1
	default:
		return nil, errors.Errorf("no uart %q", name)
	}
	if err := uart.Configure(machine.UARTConfig{BaudRate: uint32(baud)}); err != nil {
		return nil, err
	}
	return uart, nil
}

func openSPI(name string, hz float64) (tinydrivers.SPI, error) {
	var spi *machine.SPI
	switch name {
	case "spi0":
		spi = machine.SPI0
	case "spi1":
		spi = machine.SPI1
	default:
		return nil, errors.Errorf("no spi %q", name)
	}
	if err := spi.Configure(machine.SPIConfig{Frequency: uint32(hz), Mode: 3}); err != nil {
		return nil, err
	}
	return spi, nil
}
