// Package tmc2209 drives a TMC2209 in step/dir mode, configured over its
// single wire UART.
package tmc2209

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"axisdrive/core"
	"axisdrive/drivers/trinamic"
)

const (
	IFCNT     = 0x02
	SLAVECONF = 0x03
	IOIN      = 0x06
	PWMCONF   = 0x70

	// GCONF settings
	i_scale_analog   = 1 << 0
	en_spreadcycle   = 1 << 2
	pdn_disable      = 1 << 6
	mstep_reg_select = 1 << 7
	multistep_filt   = 1 << 8

	// DRV_STATUS flags
	otpw = 1 << 0
	ot   = 1 << 1
	s2ga = 1 << 2
	s2gb = 1 << 3
	ola  = 1 << 6
	olb  = 1 << 7
	stst = 1 << 31

	writeBit = 0x80
	syncByte = 0x05

	// version in IOIN bits 24..31
	version = 0x21

	// maxIdleReads bounds the zero length reads tolerated while waiting
	// for a reply, serial ports with a read timeout return 0, nil
	maxIdleReads = 4
)

// Device is one TMC2209 on a UART bus
type Device struct {
	Bus io.ReadWriter
	// Addr is the node address set by MS1/MS2, 0..3
	Addr uint8
	// Echo is set when the bus reads back every byte written, as a single
	// wire UART does
	Echo bool
	// SenseOhms is the sense resistance
	SenseOhms float64

	modes    trinamic.Modes
	gconf    uint32
	chopconf trinamic.ChopConf
	status   core.DriverStatus
	err      error
	scratch  [8]byte
}

// New returns a driver for the TMC2209 at addr. slewing is the slewing
// microstep count, 0 for none.
func New(bus io.ReadWriter, addr uint8, echo bool, senseOhms float64, slewing int) *Device {
	return &Device{
		Bus:       bus,
		Addr:      addr,
		Echo:      echo,
		SenseOhms: senseOhms,
		modes:     trinamic.Modes{Slewing: slewing},
	}
}

// Info describes the driver
func (d *Device) Info() core.MicrostepDriverInfo {
	return core.MicrostepDriverInfo{
		Name:          "tmc2209",
		MaxMicrosteps: 256,
		SwitchesMode:  true,
		ReportsStatus: true,
	}
}

// Err returns the last bus error, nil when the last transaction succeeded
func (d *Device) Err() error {
	return d.err
}

// Init checks the chip version and writes the tracking configuration.
// The bridges stay disabled until Power(true).
func (d *Device) Init(axis uint8, microsteps int, current int) error {
	d.modes.Tracking = microsteps
	if err := d.modes.Validate(); err != nil {
		return errors.Wrap(err, "tmc2209")
	}
	mres, _ := trinamic.MRES(microsteps)

	ioin, err := d.read(IOIN)
	if err != nil {
		return errors.Wrap(err, "tmc2209: read IOIN")
	}
	if v := ioin >> 24; v != version {
		return errors.Errorf("tmc2209: unexpected version 0x%02x", v)
	}

	d.gconf = pdn_disable | mstep_reg_select | multistep_filt
	if current == 0 {
		// keep the VREF current setting
		d.gconf |= i_scale_analog
	}
	d.chopconf = trinamic.DefaultChopConf().WithMRES(mres).WithTOFF(0)

	if err := d.write(trinamic.GCONF, d.gconf); err != nil {
		return errors.Wrap(err, "tmc2209: set GCONF")
	}
	if current > 0 {
		if err := d.write(trinamic.IHOLD_IRUN, trinamic.IHoldIRun(current, d.SenseOhms, 6)); err != nil {
			return errors.Wrap(err, "tmc2209: set IHOLD_IRUN")
		}
	}
	if err := d.write(trinamic.CHOPCONF, uint32(d.chopconf)); err != nil {
		return errors.Wrap(err, "tmc2209: set CHOPCONF")
	}
	// clear reset and error flags
	if err := d.write(trinamic.GSTAT, 0b111); err != nil {
		return errors.Wrap(err, "tmc2209: set GSTAT")
	}
	return nil
}

// MicrostepRatio returns the tracking microstep count
func (d *Device) MicrostepRatio() int {
	return d.modes.Tracking
}

// ModeSwitchAllowed reports whether a coarser slewing resolution is set
func (d *Device) ModeSwitchAllowed() bool {
	return d.modes.SwitchAllowed()
}

// ModeMicrostepTracking restores the tracking resolution
func (d *Device) ModeMicrostepTracking() {
	mres, _ := trinamic.MRES(d.modes.Tracking)
	d.setChopConf(d.chopconf.WithMRES(mres))
}

// ModeMicrostepSlewing selects the slewing resolution
func (d *Device) ModeMicrostepSlewing() int {
	if !d.modes.SwitchAllowed() {
		return 1
	}
	mres, _ := trinamic.MRES(d.modes.Slewing)
	if !d.setChopConf(d.chopconf.WithMRES(mres)) {
		return 1
	}
	return d.modes.Ratio()
}

// ModeDecayTracking selects stealthChop
func (d *Device) ModeDecayTracking() {
	d.setGConf(d.gconf &^ en_spreadcycle)
}

// ModeDecaySlewing selects spreadCycle
func (d *Device) ModeDecaySlewing() {
	d.setGConf(d.gconf | en_spreadcycle)
}

// Power enables or disables the bridges through TOFF
func (d *Device) Power(on bool) {
	var toff uint32
	if on {
		toff = trinamic.DefaultTOFF
	}
	d.setChopConf(d.chopconf.WithTOFF(toff))
}

// UpdateStatus reads DRV_STATUS. A bus error sets Fault.
func (d *Device) UpdateStatus() {
	v, err := d.read(trinamic.DRV_STATUS)
	if err != nil {
		d.err = err
		d.status = core.DriverStatus{Fault: true}
		return
	}
	d.err = nil
	d.status = decodeStatus(v)
}

// Status returns the status from the last UpdateStatus
func (d *Device) Status() core.DriverStatus {
	return d.status
}

func decodeStatus(v uint32) core.DriverStatus {
	s := core.DriverStatus{
		ShortToGroundA:  v&s2ga != 0,
		ShortToGroundB:  v&s2gb != 0,
		OpenLoadA:       v&ola != 0,
		OpenLoadB:       v&olb != 0,
		OverTemperature: v&ot != 0,
		OverTempWarning: v&otpw != 0,
		Standstill:      v&stst != 0,
	}
	s.Fault = s.ShortToGroundA || s.ShortToGroundB || s.OverTemperature
	return s
}

func (d *Device) setChopConf(c trinamic.ChopConf) bool {
	if err := d.write(trinamic.CHOPCONF, uint32(c)); err != nil {
		d.err = errors.Wrap(err, "tmc2209: set CHOPCONF")
		d.status.Fault = true
		return false
	}
	d.chopconf = c
	return true
}

func (d *Device) setGConf(v uint32) {
	if err := d.write(trinamic.GCONF, v); err != nil {
		d.err = errors.Wrap(err, "tmc2209: set GCONF")
		d.status.Fault = true
		return
	}
	d.gconf = v
}

func (d *Device) read(reg uint8) (uint32, error) {
	req := d.scratch[:4]
	req[0] = syncByte
	req[1] = d.Addr
	req[2] = reg
	req[3] = CRC(req[:3])
	if err := d.send(req); err != nil {
		return 0, err
	}

	rx := d.scratch[:8]
	if err := d.readFull(rx); err != nil {
		return 0, errors.Wrap(err, "read reply")
	}
	if rx[7] != CRC(rx[:7]) {
		return 0, errors.New("reply CRC mismatch")
	}
	if rx[0]&0x0f != syncByte || rx[2] != reg {
		return 0, errors.Errorf("unexpected reply for register 0x%02x", reg)
	}
	return binary.BigEndian.Uint32(rx[3:7]), nil
}

func (d *Device) write(reg uint8, val uint32) error {
	wr := d.scratch[:8]
	wr[0] = syncByte
	wr[1] = d.Addr
	wr[2] = reg | writeBit
	binary.BigEndian.PutUint32(wr[3:7], val)
	wr[7] = CRC(wr[:7])
	return d.send(wr)
}

// send writes a datagram and drops its echo
func (d *Device) send(b []byte) error {
	if _, err := d.Bus.Write(b); err != nil {
		return errors.Wrap(err, "write")
	}
	if !d.Echo {
		return nil
	}
	var echo [8]byte
	if err := d.readFull(echo[:len(b)]); err != nil {
		return errors.Wrap(err, "read echo")
	}
	return nil
}

func (d *Device) readFull(b []byte) error {
	idle := 0
	for n := 0; n < len(b); {
		m, err := d.Bus.Read(b[n:])
		n += m
		if err != nil {
			if err == io.EOF && n == len(b) {
				return nil
			}
			return err
		}
		if m == 0 {
			idle++
			if idle > maxIdleReads {
				return io.ErrNoProgress
			}
		}
	}
	return nil
}

// CRC computes the datagram CRC8 (polynomial x^8+x^2+x+1, bits LSB first)
func CRC(b []byte) byte {
	var crc byte
	for _, c := range b {
		for i := 0; i < 8; i++ {
			if (crc>>7)^(c&1) != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
			c >>= 1
		}
	}
	return crc
}
