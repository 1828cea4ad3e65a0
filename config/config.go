// Package config loads the axis table: pins, driver, and backlash settings
// for every step/direction axis.
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"

	"axisdrive/core"
)

// Driver models
const (
	ModelGeneric   = "generic"
	ModelA4988     = "a4988"
	ModelDRV8825   = "drv8825"
	ModelTMC2209S  = "tmc2209-standalone"
	ModelTMC2209   = "tmc2209"
	ModelTMC2130   = "tmc2130"
	WaveformSquare = "square"
	WaveformPulse  = "pulse"
)

// MaxAxes is the largest axis number accepted
const MaxAxes = 9

// Config is the complete axis table
type Config struct {
	// PeriodSubMicros is the measured length of one sidereal second in
	// sub-micro ticks. Zero uses the nominal clock.
	PeriodSubMicros float64      `json:"period_sub_micros,omitempty"`
	Debug           bool         `json:"debug,omitempty"`
	Axes            []AxisConfig `json:"axes"`
}

// AxisConfig describes one axis
type AxisConfig struct {
	Axis uint8  `json:"axis"`
	Name string `json:"name,omitempty"`

	StepPin     string `json:"step_pin"`
	DirPin      string `json:"dir_pin,omitempty"`
	EnablePin   string `json:"enable_pin,omitempty"`   // "", "off" or "shared" for none
	StepState   string `json:"step_state,omitempty"`   // "high" (default) or "low"
	EnableState string `json:"enable_state,omitempty"` // "low" (default) or "high"

	Reverse         bool   `json:"reverse,omitempty"`
	SharedDirection bool   `json:"shared_direction,omitempty"`
	StepWaveForm    string `json:"step_wave_form,omitempty"`

	Driver DriverConfig `json:"driver"`

	BacklashSteps     int32     `json:"backlash_steps,omitempty"`
	BacklashFrequency Frequency `json:"backlash_frequency,omitempty"`
}

// DriverConfig describes the microstep driver of one axis
type DriverConfig struct {
	Model             string  `json:"model"`
	Microsteps        int     `json:"microsteps"`
	MicrostepsSlewing int     `json:"microsteps_slewing,omitempty"` // 0 = no mode switch
	Current           Current `json:"current,omitempty"`            // 0 = driver default

	// Mode pins for step/dir chips without a bus
	M0 string `json:"m0,omitempty"`
	M1 string `json:"m1,omitempty"`
	M2 string `json:"m2,omitempty"`

	// TMC2209 UART
	UART    string `json:"uart,omitempty"`
	Baud    int    `json:"baud,omitempty"`
	Address uint8  `json:"address,omitempty"`
	// UARTEcho is set when TX and RX share one wire
	UARTEcho bool `json:"uart_echo,omitempty"`

	// TMC2130 SPI
	SPIBus       string    `json:"spi_bus,omitempty"`
	ChipSelect   string    `json:"chip_select,omitempty"`
	SPIFrequency Frequency `json:"spi_frequency,omitempty"`

	SenseOhms float64 `json:"sense_ohms,omitempty"`
}

// Frequency is a rate in Hz. JSON accepts a number or a string with a unit
// such as "200Hz" or "4MHz".
type Frequency float64

// UnmarshalJSON implements json.Unmarshaler
func (f *Frequency) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = Frequency(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("frequency must be a number or a string such as \"200Hz\"")
	}
	var p physic.Frequency
	if err := p.Set(s); err != nil {
		return errors.Wrapf(err, "frequency %q", s)
	}
	*f = Frequency(float64(p) / float64(physic.Hertz))
	return nil
}

// Current is a motor current in mA. JSON accepts a number of mA or a string
// with a unit such as "800mA" or "1.2A".
type Current int

// UnmarshalJSON implements json.Unmarshaler
func (c *Current) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*c = Current(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("current must be a number of mA or a string such as \"800mA\"")
	}
	var p physic.ElectricCurrent
	if err := p.Set(s); err != nil {
		return errors.Wrapf(err, "current %q", s)
	}
	*c = Current(p / physic.MilliAmpere)
	return nil
}

// Load parses a JSON axis table, applies defaults and validates it
func Load(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, errors.Wrap(err, "parse axis config")
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile reads and parses an axis table from disk
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Load(data)
}

// applyDefaults fills in missing configuration values
func applyDefaults(config *Config) {
	for i := range config.Axes {
		axis := &config.Axes[i]
		if axis.Name == "" {
			axis.Name = "axis" + string(rune('0'+axis.Axis%10))
		}
		if axis.StepState == "" {
			axis.StepState = "high"
		}
		if axis.EnableState == "" {
			axis.EnableState = "low"
		}
		if axis.StepWaveForm == "" {
			axis.StepWaveForm = WaveformSquare
		}
		axis.StepWaveForm = strings.ToLower(axis.StepWaveForm)

		d := &axis.Driver
		if d.Model == "" {
			d.Model = ModelGeneric
		}
		d.Model = strings.ToLower(d.Model)
		if d.Microsteps == 0 {
			d.Microsteps = 16
		}
		switch d.Model {
		case ModelTMC2209:
			if d.Baud == 0 {
				d.Baud = 115200
			}
			if d.SenseOhms == 0 {
				d.SenseOhms = 0.11
			}
		case ModelTMC2130:
			if d.SPIFrequency == 0 {
				d.SPIFrequency = 2000000
			}
			if d.SenseOhms == 0 {
				d.SenseOhms = 0.11
			}
		}
	}
}

// Validate checks every axis and reports all problems at once
func (c *Config) Validate() error {
	var err error
	if len(c.Axes) == 0 {
		err = multierr.Append(err, errors.New("no axes configured"))
	}
	if c.PeriodSubMicros < 0 {
		err = multierr.Append(err, errors.Errorf("period_sub_micros %g is negative", c.PeriodSubMicros))
	}

	seen := make(map[uint8]bool)
	for _, axis := range c.Axes {
		if seen[axis.Axis] {
			err = multierr.Append(err, errors.Errorf("axis %d: configured twice", axis.Axis))
		}
		seen[axis.Axis] = true
		err = multierr.Append(err, axis.Validate())
	}
	return err
}

// Validate checks one axis
func (a AxisConfig) Validate() error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, errors.Errorf("axis %d: "+format, append([]interface{}{a.Axis}, args...)...))
	}

	if a.Axis < 1 || a.Axis > MaxAxes {
		fail("axis number must be 1..%d", MaxAxes)
	}

	if step, perr := core.ParsePin(a.StepPin); perr != nil {
		fail("step_pin: %v", perr)
	} else if !step.IsDedicated() {
		fail("step_pin is required")
	}
	for _, pin := range []struct{ name, value string }{
		{"dir_pin", a.DirPin},
		{"enable_pin", a.EnablePin},
		{"m0", a.Driver.M0},
		{"m1", a.Driver.M1},
		{"m2", a.Driver.M2},
	} {
		if _, perr := core.ParsePin(pin.value); perr != nil {
			fail("%s: %v", pin.name, perr)
		}
	}

	if !isLevel(a.StepState) {
		fail("step_state %q must be high or low", a.StepState)
	}
	if !isLevel(a.EnableState) {
		fail("enable_state %q must be high or low", a.EnableState)
	}
	if a.StepWaveForm != WaveformSquare && a.StepWaveForm != WaveformPulse {
		fail("step_wave_form %q must be square or pulse", a.StepWaveForm)
	}
	if a.SharedDirection && a.Axis <= 2 {
		fail("shared_direction is not supported on axes 1 and 2")
	}
	if a.BacklashSteps < 0 {
		fail("backlash_steps %d is negative", a.BacklashSteps)
	}
	if a.BacklashFrequency < 0 {
		fail("backlash_frequency %g is negative", float64(a.BacklashFrequency))
	}

	d := a.Driver
	if !isMicrosteps(d.Microsteps) {
		fail("microsteps %d must be a power of two up to 256", d.Microsteps)
	}
	if d.MicrostepsSlewing != 0 && (!isMicrosteps(d.MicrostepsSlewing) || d.MicrostepsSlewing > d.Microsteps) {
		fail("microsteps_slewing %d must be a power of two no larger than microsteps", d.MicrostepsSlewing)
	}
	if d.Current < 0 {
		fail("current %d is negative", d.Current)
	}

	switch d.Model {
	case ModelGeneric, ModelA4988, ModelDRV8825, ModelTMC2209S:
	case ModelTMC2209:
		if d.UART == "" {
			fail("tmc2209 needs a uart")
		}
		if d.Address > 3 {
			fail("tmc2209 address %d must be 0..3", d.Address)
		}
	case ModelTMC2130:
		if d.SPIBus == "" {
			fail("tmc2130 needs an spi_bus")
		}
		if cs, perr := core.ParsePin(d.ChipSelect); perr != nil || !cs.IsDedicated() {
			fail("tmc2130 needs a chip_select pin")
		}
	default:
		fail("unknown driver model %q", d.Model)
	}
	return err
}

func isLevel(s string) bool {
	return s == "high" || s == "low"
}

func isMicrosteps(n int) bool {
	return n >= 1 && n <= 256 && n&(n-1) == 0
}

// Default returns a two axis equatorial mount on the rp2040 pin map with
// generic drivers
func Default() *Config {
	config := &Config{
		Axes: []AxisConfig{
			{
				Axis:              1,
				Name:              "ra",
				StepPin:           "gpio2",
				DirPin:            "gpio3",
				EnablePin:         "gpio8",
				BacklashFrequency: 64,
				Driver: DriverConfig{
					Model:             ModelTMC2209S,
					Microsteps:        32,
					MicrostepsSlewing: 8,
					M0:                "gpio10",
					M1:                "gpio11",
				},
			},
			{
				Axis:              2,
				Name:              "dec",
				StepPin:           "gpio4",
				DirPin:            "gpio5",
				EnablePin:         "gpio8",
				BacklashFrequency: 64,
				Driver: DriverConfig{
					Model:             ModelTMC2209S,
					Microsteps:        32,
					MicrostepsSlewing: 8,
					M0:                "gpio12",
					M1:                "gpio13",
				},
			},
		},
	}
	applyDefaults(config)
	return config
}
