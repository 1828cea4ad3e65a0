// Command axis-host runs step/dir axes from a Linux host: it loads an axis
// table, builds the axes and drives one of them at a constant rate or to a
// target while logging its position.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"axisdrive/config"
	"axisdrive/core"
	"axisdrive/drivers"
	"axisdrive/host/clock"
	hostgpio "axisdrive/host/gpio"
	"axisdrive/host/serial"
	hostspi "axisdrive/host/spi"
	"axisdrive/stepdir"
)

var (
	configPath = flag.String("config", "", "Axis table (JSON); empty for the built-in two axis mount")
	axisNum    = flag.Int("axis", 1, "Axis to drive")
	freq       = flag.Float64("freq", 0, "Step rate in steps/s, negative for reverse")
	gotoSteps  = flag.Int("goto", 0, "Move to this target in steps at |freq| instead of running at a constant rate")
	duration   = flag.Duration("duration", 10*time.Second, "How long to run")
	sim        = flag.Bool("sim", false, "Use in-memory pins and jumpered drivers instead of hardware")
	verbose    = flag.Bool("verbose", false, "Enable debug output")
)

func main() {
	flag.Parse()

	logger := golog.NewLogger("axis-host")
	if *verbose {
		logger = golog.NewDevelopmentLogger("axis-host")
	}

	if err := run(logger); err != nil {
		logger.Errorw("failed", "error", err)
		os.Exit(1)
	}
}

func run(logger golog.Logger) error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return err
		}
	}
	if cfg.PeriodSubMicros > 0 {
		core.SetPeriodSubMicros(cfg.PeriodSubMicros)
	}
	core.SetDebugEnabled(cfg.Debug || *verbose)
	core.SetDebugWriter(func(s string) { logger.Debug(s) })

	var pins core.GPIODriver
	if *sim {
		pins = core.NewMemoryGPIO()
	} else {
		d, err := hostgpio.Open()
		if err != nil {
			return err
		}
		defer d.Release()
		pins = d
	}

	buses := &drivers.Buses{GPIO: pins, UART: serial.OpenUART, SPI: hostspi.OpenSPI}
	defer buses.Close()
	factory := buses.Factory()
	if *sim {
		factory = func(ac config.AxisConfig) (core.MicrostepDriver, error) {
			switch ac.Driver.Model {
			case config.ModelTMC2209, config.ModelTMC2130:
				ac.Driver.Model = config.ModelGeneric
			}
			return buses.New(ac)
		}
	}

	tasks := core.DefaultTasks()
	reg, err := stepdir.NewRegistry(cfg.Axes, stepdir.Deps{
		GPIO:    pins,
		Tasks:   tasks,
		Logger:  logger,
		Drivers: factory,
	})
	if err != nil {
		logger.Warnw("some axes failed to initialize", "error", err)
	}
	axis, ok := reg.Axis(uint8(*axisNum))
	if !ok {
		return errors.Errorf("axis %d is not available", *axisNum)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	dispatcher := clock.New(tasks)
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()

	axis.Power(true)
	defer reg.Stop()

	m := newMover(axis, float32(*freq), *gotoSteps != 0, int32(*gotoSteps))
	m.start()
	logger.Infow("running", "axis", axis.Name(), "rate", m.rate, "mode", axis.Mode().String(), "variant", axis.Variant().String())

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	report := time.NewTicker(500 * time.Millisecond)
	defer report.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			m.stop()
			logger.Infow("stopped", "position", axis.MotorPositionSteps(), "dispatched", dispatcher.Fired())
			if cfg.Debug {
				core.DumpTimingRing()
			}
			return nil
		case <-poll.C:
			if m.poll() {
				logger.Infow("target reached", "position", axis.MotorPositionSteps())
				cancel()
			}
		case <-report.C:
			logger.Infow("position",
				"motor", axis.MotorPositionSteps(),
				"target", axis.TargetCoordinateSteps(),
				"backlash", fmt.Sprintf("%d/%d", axis.TakenUpBacklashSteps(), axis.BacklashSteps()),
				"mode", axis.Mode().String(),
				"status", axis.DriverStatus())
		}
	}
}
