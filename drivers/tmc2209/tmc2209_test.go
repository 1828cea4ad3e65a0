package tmc2209

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"axisdrive/drivers/trinamic"
)

// fakeUART answers datagrams like a TMC2209 at any address
type fakeUART struct {
	echo    bool
	regs    map[uint8]uint32
	writes  []uint8
	pending []byte
	failW   error
	corrupt bool
}

func newFakeUART(echo bool) *fakeUART {
	return &fakeUART{echo: echo, regs: map[uint8]uint32{IOIN: version << 24}}
}

func (f *fakeUART) Write(b []byte) (int, error) {
	if f.failW != nil {
		return 0, f.failW
	}
	if f.echo {
		f.pending = append(f.pending, b...)
	}
	switch len(b) {
	case 8:
		reg := b[2] &^ writeBit
		f.regs[reg] = binary.BigEndian.Uint32(b[3:7])
		f.writes = append(f.writes, reg)
	case 4:
		reply := make([]byte, 8)
		reply[0] = syncByte
		reply[1] = 0xff
		reply[2] = b[2]
		binary.BigEndian.PutUint32(reply[3:7], f.regs[b[2]])
		reply[7] = CRC(reply[:7])
		if f.corrupt {
			reply[7]++
		}
		f.pending = append(f.pending, reply...)
	}
	return len(b), nil
}

// Read returns at most three bytes at a time, and nothing once drained
func (f *fakeUART) Read(b []byte) (int, error) {
	n := copy(b, f.pending[:min(len(f.pending), 3)])
	f.pending = f.pending[n:]
	return n, nil
}

func TestCRC(t *testing.T) {
	test.That(t, CRC([]byte{0x05, 0x00, 0x06}), test.ShouldEqual, byte(0x6f))
	test.That(t, CRC([]byte{0x05, 0x00, 0x80, 0x00, 0x00, 0x00, 0x40}), test.ShouldEqual, byte(0x47))
	test.That(t, CRC([]byte{0x05, 0xff, 0x06, 0x21, 0x00, 0x00, 0x40}), test.ShouldEqual, byte(0x4f))
}

func TestInit(t *testing.T) {
	for _, echo := range []bool{false, true} {
		bus := newFakeUART(echo)
		d := New(bus, 0, echo, 0.11, 8)
		test.That(t, d.Init(1, 32, 800), test.ShouldBeNil)
		test.That(t, bus.pending, test.ShouldBeEmpty)

		test.That(t, bus.writes, test.ShouldResemble, []uint8{
			trinamic.GCONF, trinamic.IHOLD_IRUN, trinamic.CHOPCONF, trinamic.GSTAT,
		})
		test.That(t, bus.regs[trinamic.GCONF]&i_scale_analog, test.ShouldEqual, uint32(0))
		test.That(t, bus.regs[trinamic.GCONF]&pdn_disable, test.ShouldNotEqual, uint32(0))
		test.That(t, bus.regs[trinamic.IHOLD_IRUN], test.ShouldEqual, trinamic.IHoldIRun(800, 0.11, 6))

		chop := trinamic.ChopConf(bus.regs[trinamic.CHOPCONF])
		test.That(t, chop.MRES(), test.ShouldEqual, uint32(3))
		test.That(t, chop.TOFF(), test.ShouldEqual, uint32(0))
		test.That(t, d.MicrostepRatio(), test.ShouldEqual, 32)
		test.That(t, d.ModeSwitchAllowed(), test.ShouldBeTrue)
	}
}

func TestInitAnalogCurrent(t *testing.T) {
	bus := newFakeUART(false)
	d := New(bus, 2, false, 0.11, 0)
	test.That(t, d.Init(1, 16, 0), test.ShouldBeNil)
	test.That(t, bus.regs[trinamic.GCONF]&i_scale_analog, test.ShouldNotEqual, uint32(0))
	test.That(t, bus.writes, test.ShouldNotContain, uint8(trinamic.IHOLD_IRUN))
	test.That(t, d.ModeSwitchAllowed(), test.ShouldBeFalse)
	test.That(t, d.ModeMicrostepSlewing(), test.ShouldEqual, 1)
}

func TestInitErrors(t *testing.T) {
	bus := newFakeUART(false)
	bus.regs[IOIN] = 0x20 << 24
	err := New(bus, 0, false, 0.11, 0).Init(1, 16, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unexpected version 0x20")

	bus = newFakeUART(false)
	bus.corrupt = true
	err = New(bus, 0, false, 0.11, 0).Init(1, 16, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "CRC mismatch")

	bus = newFakeUART(false)
	bus.failW = errors.New("port closed")
	err = New(bus, 0, false, 0.11, 0).Init(1, 16, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "port closed")

	err = New(newFakeUART(false), 0, false, 0.11, 64).Init(1, 16, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

// silentUART accepts writes and never answers
type silentUART struct{}

func (silentUART) Write(b []byte) (int, error) { return len(b), nil }
func (silentUART) Read(b []byte) (int, error)  { return 0, nil }

func TestNoReply(t *testing.T) {
	d := New(silentUART{}, 0, false, 0.11, 0)
	err := d.Init(1, 16, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "read reply")

	d.UpdateStatus()
	test.That(t, d.Status().Fault, test.ShouldBeTrue)
	test.That(t, d.Err(), test.ShouldNotBeNil)
}

func TestModeSwitch(t *testing.T) {
	bus := newFakeUART(false)
	d := New(bus, 0, false, 0.11, 8)
	test.That(t, d.Init(1, 32, 0), test.ShouldBeNil)
	d.Power(true)
	test.That(t, trinamic.ChopConf(bus.regs[trinamic.CHOPCONF]).TOFF(), test.ShouldEqual, uint32(trinamic.DefaultTOFF))

	test.That(t, d.ModeMicrostepSlewing(), test.ShouldEqual, 4)
	chop := trinamic.ChopConf(bus.regs[trinamic.CHOPCONF])
	test.That(t, chop.MRES(), test.ShouldEqual, uint32(5))
	// the bridges stay on through a mode change
	test.That(t, chop.TOFF(), test.ShouldEqual, uint32(trinamic.DefaultTOFF))

	d.ModeMicrostepTracking()
	test.That(t, trinamic.ChopConf(bus.regs[trinamic.CHOPCONF]).MRES(), test.ShouldEqual, uint32(3))

	d.ModeDecaySlewing()
	test.That(t, bus.regs[trinamic.GCONF]&en_spreadcycle, test.ShouldNotEqual, uint32(0))
	d.ModeDecayTracking()
	test.That(t, bus.regs[trinamic.GCONF]&en_spreadcycle, test.ShouldEqual, uint32(0))
	test.That(t, bus.regs[trinamic.GCONF]&i_scale_analog, test.ShouldNotEqual, uint32(0))

	d.Power(false)
	test.That(t, trinamic.ChopConf(bus.regs[trinamic.CHOPCONF]).TOFF(), test.ShouldEqual, uint32(0))
	test.That(t, d.Err(), test.ShouldBeNil)
}

func TestStatus(t *testing.T) {
	bus := newFakeUART(true)
	d := New(bus, 0, true, 0.11, 0)
	test.That(t, d.Init(1, 16, 0), test.ShouldBeNil)

	bus.regs[trinamic.DRV_STATUS] = stst
	d.UpdateStatus()
	test.That(t, d.Status(), test.ShouldResemble, decodeStatus(stst))
	test.That(t, d.Status().Standstill, test.ShouldBeTrue)
	test.That(t, d.Status().Fault, test.ShouldBeFalse)

	bus.regs[trinamic.DRV_STATUS] = s2ga | ola | otpw
	d.UpdateStatus()
	s := d.Status()
	test.That(t, s.ShortToGroundA, test.ShouldBeTrue)
	test.That(t, s.OpenLoadA, test.ShouldBeTrue)
	test.That(t, s.OverTempWarning, test.ShouldBeTrue)
	test.That(t, s.Fault, test.ShouldBeTrue)

	bus.regs[trinamic.DRV_STATUS] = olb | otpw
	d.UpdateStatus()
	test.That(t, d.Status().Fault, test.ShouldBeFalse)
	test.That(t, decodeStatus(ot).Fault, test.ShouldBeTrue)
	test.That(t, decodeStatus(s2gb).ShortToGroundB, test.ShouldBeTrue)
}
