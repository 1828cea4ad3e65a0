package stepdir

import (
	"testing"

	"go.viam.com/test"
)

func TestMoveToTarget(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(1000)
	f.axis.SetTargetCoordinateSteps(1000 + 5000)
	test.That(t, f.axis.TargetDistanceSteps(), test.ShouldEqual, int32(5000))

	f.axis.SetFrequencySteps(100)
	f.tick(5000)
	test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(6000))
	test.That(t, f.axis.TargetDistanceSteps(), test.ShouldEqual, int32(0))
	test.That(t, f.gpio.RisingEdges(stepPin), test.ShouldEqual, 5000)

	// on target, further ticks do nothing
	f.tick(10)
	test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(6000))
	test.That(t, f.gpio.RisingEdges(stepPin), test.ShouldEqual, 5000)
	test.That(t, f.gpio.Level(stepPin), test.ShouldBeFalse)
}

func TestResetPosition(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.SetInstrumentCoordinateSteps(500)
	f.axis.SetBacklashSteps(4)
	f.axis.SetTargetCoordinateSteps(600)
	f.axis.SetFrequencySteps(100)
	f.tick(2)
	test.That(t, f.axis.TakenUpBacklashSteps(), test.ShouldEqual, int32(2))

	f.axis.ResetPositionSteps(-42)
	test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(-42))
	test.That(t, f.axis.InstrumentCoordinateSteps(), test.ShouldEqual, int32(-42))
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(-42))
	test.That(t, f.axis.TakenUpBacklashSteps(), test.ShouldEqual, int32(0))
	test.That(t, f.axis.TargetDistanceSteps(), test.ShouldEqual, int32(0))
}

func TestInstrumentCoordinate(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(123)
	for _, v := range []int32{0, 1, -1, 123, -98765, 1 << 24} {
		f.axis.SetInstrumentCoordinateSteps(v)
		test.That(t, f.axis.InstrumentCoordinateSteps(), test.ShouldEqual, v)
		// the motor frame is untouched
		test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(123))
	}
}

func TestTargetInInstrumentFrame(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(0)
	f.axis.SetInstrumentCoordinateSteps(1000)
	f.axis.SetTargetCoordinateSteps(1010)
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(1010))
	test.That(t, f.axis.TargetDistanceSteps(), test.ShouldEqual, int32(10))

	f.axis.SetFrequencySteps(100)
	f.tick(10)
	test.That(t, f.axis.InstrumentCoordinateSteps(), test.ShouldEqual, int32(1010))
	test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(10))

	f.axis.SetTargetCoordinateSteps(0)
	f.axis.ResetTargetToMotorPosition()
	test.That(t, f.axis.TargetDistanceSteps(), test.ShouldEqual, int32(0))
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(1010))
}

func TestOriginOrTargetDistance(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(0)
	f.axis.SetOriginCoordinateSteps()
	f.axis.SetTargetCoordinateSteps(100)
	f.axis.SetFrequencySteps(100)

	f.tick(30)
	test.That(t, f.axis.OriginOrTargetDistanceSteps(), test.ShouldEqual, int32(30))
	f.tick(40)
	test.That(t, f.axis.OriginOrTargetDistanceSteps(), test.ShouldEqual, int32(30))
	f.tick(30)
	test.That(t, f.axis.OriginOrTargetDistanceSteps(), test.ShouldEqual, int32(0))
}

func TestParkAlign(t *testing.T) {
	for _, tc := range []struct {
		steps, modulo, expected int32
	}{
		{1234, 400, 1600},
		{1600, 400, 1600},
		{-1234, 400, -1600},
		{1234, 0, 1234},
		{1234, 1, 1232},
		{1, 1, 0},
		{7, 2, 8},
	} {
		test.That(t, parkAlign(tc.steps, tc.modulo), test.ShouldEqual, tc.expected)
	}
}

func TestParkTarget(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(0)
	f.axis.SetTargetCoordinateParkSteps(1234, 400)
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(1600))

	// the raw target aligns, not the instrument coordinate
	f.axis.SetInstrumentCoordinateSteps(100)
	f.axis.SetTargetCoordinateParkSteps(1334, 400)
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(1700))
	test.That(t, f.axis.TargetDistanceSteps(), test.ShouldEqual, int32(1600))
}

func TestParkInstrument(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(0)
	f.axis.SetInstrumentCoordinateParkSteps(1234, 400)
	test.That(t, f.axis.InstrumentCoordinateSteps(), test.ShouldEqual, int32(1600))

	f.axis.ResetPositionSteps(34)
	f.axis.SetInstrumentCoordinateParkSteps(1234, 400)
	test.That(t, f.axis.InstrumentCoordinateSteps(), test.ShouldEqual, int32(1600+34))
}

func TestSynchronizedTargetFollowsRate(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	f.axis.ResetPositionSteps(0)
	f.axis.SetSynchronized(true)
	test.That(t, f.axis.Synchronized(), test.ShouldBeTrue)

	f.axis.SetFrequencySteps(100)
	f.tick(50)
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(50))
	test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(50))

	f.axis.SetFrequencySteps(-100)
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirReverse)
	f.tick(20)
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(30))
	test.That(t, f.axis.MotorPositionSteps(), test.ShouldEqual, int32(30))

	f.axis.SetSynchronized(false)
	f.tick(20)
	test.That(t, f.axis.TargetCoordinateSteps(), test.ShouldEqual, int32(30))
}

func TestDirection(t *testing.T) {
	f := newTrackingAxis(t, defaultSettings())
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirNone)
	f.axis.SetFrequencySteps(10)
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirForward)
	f.axis.SetFrequencySteps(-10)
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirReverse)
	f.axis.SetFrequencySteps(0)
	test.That(t, f.axis.Direction(), test.ShouldEqual, DirNone)
	test.That(t, DirReverse.String(), test.ShouldEqual, "reverse")
}
