package main

import (
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"axisdrive/config"
	"axisdrive/core"
	"axisdrive/drivers"
	"axisdrive/stepdir"
)

func simAxis(t *testing.T) (*stepdir.StepDir, *core.Tasks) {
	t.Helper()
	gpio := core.NewMemoryGPIO()
	buses := &drivers.Buses{GPIO: gpio}
	tasks := core.NewTasks()
	core.SetTime(0)
	core.TimerInit()

	reg, err := stepdir.NewRegistry(config.Default().Axes, stepdir.Deps{
		GPIO:    gpio,
		Tasks:   tasks,
		Logger:  golog.NewTestLogger(t),
		Drivers: buses.Factory(),
	})
	test.That(t, err, test.ShouldBeNil)
	axis, ok := reg.Axis(1)
	test.That(t, ok, test.ShouldBeTrue)
	axis.ResetPositionSteps(0)
	return axis, tasks
}

// simulate dispatches tasks for d of simulated time in 100us slices, polling
// m at pollInterval. It stops early when a goto finishes.
func simulate(tasks *core.Tasks, m *mover, d time.Duration, each func()) (time.Duration, bool) {
	const slice = 100 * time.Microsecond
	ticks := uint64(core.TimerFromUS(uint32(slice.Microseconds())))
	var now uint64
	for elapsed := time.Duration(0); elapsed < d; elapsed += slice {
		now += ticks
		core.SetTime(now)
		tasks.Dispatch(now)
		if elapsed%pollInterval == 0 {
			if m.poll() {
				return elapsed, true
			}
		}
		if each != nil {
			each()
		}
	}
	return d, false
}

func TestGotoCompletesSlew(t *testing.T) {
	axis, tasks := simAxis(t)
	m := newMover(axis, -500, true, 1000)
	test.That(t, m.rate, test.ShouldEqual, float32(500))
	m.start()

	sawFast := false
	took, done := simulate(tasks, m, 5*time.Second, func() {
		if axis.Variant() == stepdir.MoveFastForward {
			sawFast = true
		}
	})
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, took, test.ShouldBeLessThan, 4*time.Second)
	test.That(t, sawFast, test.ShouldBeTrue)

	test.That(t, axis.MotorPositionSteps(), test.ShouldEqual, int32(1000))
	test.That(t, axis.TargetDistanceSteps(), test.ShouldEqual, int32(0))
	test.That(t, axis.Mode(), test.ShouldEqual, stepdir.ModeTracking)
	test.That(t, axis.Variant(), test.ShouldEqual, stepdir.MoveBidirectional)
	test.That(t, axis.PeriodSubMicros(), test.ShouldEqual, uint32(0))
}

func TestConstantRateKeepsSlewing(t *testing.T) {
	axis, tasks := simAxis(t)
	m := newMover(axis, 500, false, 0)
	m.start()

	_, done := simulate(tasks, m, time.Second, nil)
	test.That(t, done, test.ShouldBeFalse)
	test.That(t, axis.Mode(), test.ShouldEqual, stepdir.ModeSlewing)
	test.That(t, axis.Variant(), test.ShouldEqual, stepdir.MoveFastForward)
	test.That(t, axis.SlewStep(), test.ShouldEqual, int32(4))
	test.That(t, axis.MotorPositionSteps(), test.ShouldBeGreaterThan, int32(400))
	test.That(t, axis.MotorPositionSteps(), test.ShouldBeLessThanOrEqualTo, int32(500))

	m.stop()
	test.That(t, axis.Mode(), test.ShouldEqual, stepdir.ModeTracking)
	test.That(t, axis.PeriodSubMicros(), test.ShouldEqual, uint32(0))
}
