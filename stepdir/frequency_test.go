package stepdir

import (
	"math"
	"testing"

	"go.viam.com/test"

	"axisdrive/core"
)

func TestPeriodFromFrequency(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.SetFrequencySteps(1000)
	test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(16000))
	test.That(t, f.sched.tasks[0].period, test.ShouldEqual, uint32(16000))
	test.That(t, f.axis.FrequencySteps(), test.ShouldEqual, float32(1000))

	f.axis.SetFrequencySteps(-250)
	test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(64000))
	test.That(t, f.axis.FrequencySteps(), test.ShouldEqual, float32(250))
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirReverse)
}

func TestPeriodSquareWave(t *testing.T) {
	settings := defaultSettings()
	settings.Waveform = WaveformSquare
	f := newTrackingAxis(t, settings)
	f.axis.SetFrequencySteps(1000)
	test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(8000))
	test.That(t, f.axis.FrequencySteps(), test.ShouldEqual, float32(1000))
}

func TestSignChangeKeepsPeriod(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.SetFrequencySteps(500)
	updates := len(f.sched.periods)

	f.axis.SetFrequencySteps(-500)
	test.That(t, len(f.sched.periods), test.ShouldEqual, updates)
	test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(32000))
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirReverse)
}

func TestRejectedFrequencyStops(t *testing.T) {
	for _, tc := range []struct {
		name string
		rate float32
	}{
		{"zero", 0},
		{"nan", float32(math.NaN())},
		{"too slow", 0.001},
		{"too fast", 1e9},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newTrackingAxis(t, defaultSettings())
			f.axis.SetFrequencySteps(100)
			test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(160000))

			core.ClearTimingRing()
			f.axis.SetFrequencySteps(tc.rate)
			test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(0))
			test.That(t, f.axis.FrequencySteps(), test.ShouldEqual, float32(0))
			test.That(t, f.axis.Direction(), test.ShouldEqual, DirNone)
			test.That(t, f.sched.tasks[0].period, test.ShouldEqual, uint32(0))

			var rejected bool
			for _, evt := range core.TimingEvents() {
				if evt.EventType == core.EvtPeriodReject && evt.Axis == 1 {
					rejected = true
				}
			}
			test.That(t, rejected, test.ShouldBeTrue)
		})
	}
}

func TestStoppedAxisDoesNotStep(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.SetTargetCoordinateSteps(10)
	f.axis.SetFrequencySteps(0)
	// a zero period keeps the task idle; the generator is never scheduled
	test.That(t, f.sched.tasks[0].period, test.ShouldEqual, uint32(0))
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirNone)
}

func TestClockCorrection(t *testing.T) {
	defer core.SetPeriodSubMicros(core.SiderealPeriod)
	core.SetPeriodSubMicros(core.SiderealPeriod * 2)

	f := newTrackingAxis(t, defaultSettings())
	f.axis.SetFrequencySteps(1000)
	test.That(t, f.axis.PeriodSubMicros(), test.ShouldEqual, uint32(8000))
}
