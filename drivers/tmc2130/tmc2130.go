// Package tmc2130 drives a TMC2130 in step/dir mode, configured over SPI.
package tmc2130

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"

	"axisdrive/core"
	"axisdrive/drivers/trinamic"
)

const (
	IOIN     = 0x04
	TPWMTHRS = 0x13
	PWMCONF  = 0x70

	// GCONF settings
	i_scale_analog = 1 << 0
	en_pwm_mode    = 1 << 2

	// DRV_STATUS flags
	ot   = 1 << 25
	otpw = 1 << 26
	s2ga = 1 << 27
	s2gb = 1 << 28
	ola  = 1 << 29
	olb  = 1 << 30
	stst = 1 << 31

	writeBit = 0x80

	// version in IOIN bits 24..31
	version = 0x11

	// stealthChop PWM_GRAD=1, PWM_AMPL=200, pwm_autoscale
	defaultPWMConf = 1<<18 | 1<<8 | 200
)

type regWrite struct {
	reg uint8
	val uint32
}

// Device is one TMC2130 on an SPI bus
type Device struct {
	Bus drivers.SPI
	// CS is the active low chip select, driven through GPIO
	CS        core.GPIOPin
	GPIO      core.GPIODriver
	SenseOhms float64

	modes    trinamic.Modes
	gconf    uint32
	chopconf trinamic.ChopConf
	status   core.DriverStatus
	err      error
	tx, rx   [5]byte
}

// New returns a driver for the TMC2130 selected by cs. slewing is the
// slewing microstep count, 0 for none.
func New(bus drivers.SPI, gpio core.GPIODriver, cs core.GPIOPin, senseOhms float64, slewing int) *Device {
	return &Device{
		Bus:       bus,
		CS:        cs,
		GPIO:      gpio,
		SenseOhms: senseOhms,
		modes:     trinamic.Modes{Slewing: slewing},
	}
}

// Info describes the driver
func (d *Device) Info() core.MicrostepDriverInfo {
	return core.MicrostepDriverInfo{
		Name:          "tmc2130",
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
		return errors.Wrap(err, "tmc2130")
	}
	mres, _ := trinamic.MRES(microsteps)

	if err := d.GPIO.ConfigureOutput(d.CS); err != nil {
		return errors.Wrap(err, "tmc2130: chip select")
	}
	if err := d.GPIO.SetPin(d.CS, true); err != nil {
		return errors.Wrap(err, "tmc2130: chip select")
	}

	ioin, err := d.read(IOIN)
	if err != nil {
		return errors.Wrap(err, "tmc2130: read IOIN")
	}
	if v := ioin >> 24; v != version {
		return errors.Errorf("tmc2130: unexpected version 0x%02x", v)
	}

	d.gconf = 0
	if current == 0 {
		d.gconf |= i_scale_analog
	}
	d.chopconf = trinamic.DefaultChopConf().WithMRES(mres).WithTOFF(0)

	writes := []regWrite{
		{trinamic.GCONF, d.gconf},
		{trinamic.CHOPCONF, uint32(d.chopconf)},
		{PWMCONF, defaultPWMConf},
		{trinamic.TPOWERDOWN, 10},
	}
	if current > 0 {
		writes = append(writes, regWrite{trinamic.IHOLD_IRUN, trinamic.IHoldIRun(current, d.SenseOhms, 6)})
	}
	for _, w := range writes {
		if err := d.write(w.reg, w.val); err != nil {
			return errors.Wrapf(err, "tmc2130: set register 0x%02x", w.reg)
		}
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
	d.setGConf(d.gconf | en_pwm_mode)
}

// ModeDecaySlewing selects spreadCycle
func (d *Device) ModeDecaySlewing() {
	d.setGConf(d.gconf &^ en_pwm_mode)
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
		d.err = errors.Wrap(err, "tmc2130: set CHOPCONF")
		d.status.Fault = true
		return false
	}
	d.chopconf = c
	return true
}

func (d *Device) setGConf(v uint32) {
	if err := d.write(trinamic.GCONF, v); err != nil {
		d.err = errors.Wrap(err, "tmc2130: set GCONF")
		d.status.Fault = true
		return
	}
	d.gconf = v
}

// transfer clocks one 40 bit datagram and returns the reply to the
// previous one
func (d *Device) transfer(reg uint8, val uint32) (uint32, error) {
	d.tx[0] = reg
	binary.BigEndian.PutUint32(d.tx[1:], val)
	if err := d.GPIO.SetPin(d.CS, false); err != nil {
		return 0, err
	}
	err := d.Bus.Tx(d.tx[:], d.rx[:])
	if cerr := d.GPIO.SetPin(d.CS, true); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(d.rx[1:]), nil
}

// read takes two datagrams: the first selects the register, the second
// returns its value
func (d *Device) read(reg uint8) (uint32, error) {
	if _, err := d.transfer(reg, 0); err != nil {
		return 0, err
	}
	return d.transfer(reg, 0)
}

func (d *Device) write(reg uint8, val uint32) error {
	_, err := d.transfer(reg|writeBit, val)
	return err
}
