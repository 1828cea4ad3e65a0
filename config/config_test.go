package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte(`{"axes": [{"axis": 1, "step_pin": "gpio2", "dir_pin": "gpio3"}]}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(cfg.Axes), test.ShouldEqual, 1)

	axis := cfg.Axes[0]
	test.That(t, axis.Name, test.ShouldEqual, "axis1")
	test.That(t, axis.StepState, test.ShouldEqual, "high")
	test.That(t, axis.EnableState, test.ShouldEqual, "low")
	test.That(t, axis.StepWaveForm, test.ShouldEqual, WaveformSquare)
	test.That(t, axis.Driver.Model, test.ShouldEqual, ModelGeneric)
	test.That(t, axis.Driver.Microsteps, test.ShouldEqual, 16)
}

func TestLoadUnits(t *testing.T) {
	cfg, err := Load([]byte(`{
		"axes": [{
			"axis": 2,
			"name": "dec",
			"step_pin": "4",
			"step_wave_form": "PULSE",
			"backlash_steps": 40,
			"backlash_frequency": "200Hz",
			"driver": {
				"model": "TMC2209",
				"microsteps": 64,
				"microsteps_slewing": 8,
				"current": "800mA",
				"uart": "/dev/ttyUSB0",
				"address": 1
			}
		}, {
			"axis": 3,
			"step_pin": "gpio6",
			"backlash_frequency": 150.5,
			"driver": {"model": "tmc2130", "spi_bus": "SPI0.0", "chip_select": "gpio9", "current": 1200}
		}]
	}`))
	test.That(t, err, test.ShouldBeNil)

	dec := cfg.Axes[0]
	test.That(t, dec.StepWaveForm, test.ShouldEqual, WaveformPulse)
	test.That(t, dec.BacklashSteps, test.ShouldEqual, int32(40))
	test.That(t, dec.BacklashFrequency, test.ShouldEqual, Frequency(200))
	test.That(t, dec.Driver.Model, test.ShouldEqual, ModelTMC2209)
	test.That(t, dec.Driver.Current, test.ShouldEqual, Current(800))
	test.That(t, dec.Driver.Baud, test.ShouldEqual, 115200)
	test.That(t, dec.Driver.SenseOhms, test.ShouldEqual, 0.11)

	focus := cfg.Axes[1]
	test.That(t, focus.BacklashFrequency, test.ShouldEqual, Frequency(150.5))
	test.That(t, focus.Driver.Current, test.ShouldEqual, Current(1200))
	test.That(t, focus.Driver.SPIFrequency, test.ShouldEqual, Frequency(2000000))
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name, json string
		errs       []string
	}{
		{"syntax", `{"axes": [`, []string{"parse axis config"}},
		{"empty", `{"axes": []}`, []string{"no axes configured"}},
		{"bad unit", `{"axes": [{"axis": 1, "step_pin": "2", "backlash_frequency": "fast"}]}`, []string{"frequency \"fast\""}},
		{"bad current", `{"axes": [{"axis": 1, "step_pin": "2", "driver": {"current": true}}]}`, []string{"current must be"}},
		{
			"axis problems",
			`{"axes": [{"axis": 12, "dir_pin": "x", "step_state": "up", "step_wave_form": "sine", "backlash_steps": -1,
				"driver": {"microsteps": 12, "microsteps_slewing": 32, "model": "l298"}}]}`,
			[]string{
				"axis 12: axis number must be 1..9",
				"step_pin is required",
				"dir_pin: invalid pin name",
				"step_state \"up\"",
				"step_wave_form \"sine\"",
				"backlash_steps -1",
				"microsteps 12",
				"microsteps_slewing 32",
				"unknown driver model \"l298\"",
			},
		},
		{
			"duplicate",
			`{"axes": [{"axis": 1, "step_pin": "2"}, {"axis": 1, "step_pin": "4"}]}`,
			[]string{"axis 1: configured twice"},
		},
		{
			"shared direction",
			`{"axes": [{"axis": 2, "step_pin": "2", "shared_direction": true}]}`,
			[]string{"shared_direction"},
		},
		{
			"tmc2209",
			`{"axes": [{"axis": 1, "step_pin": "2", "driver": {"model": "tmc2209", "address": 4}}]}`,
			[]string{"needs a uart", "address 4"},
		},
		{
			"tmc2130",
			`{"axes": [{"axis": 1, "step_pin": "2", "driver": {"model": "tmc2130"}}]}`,
			[]string{"needs an spi_bus", "chip_select"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.json))
			test.That(t, err, test.ShouldNotBeNil)
			for _, e := range tc.errs {
				test.That(t, err.Error(), test.ShouldContainSubstring, e)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axes.json")
	test.That(t, os.WriteFile(path, []byte(`{"debug": true, "axes": [{"axis": 1, "step_pin": "gpio2"}]}`), 0o600), test.ShouldBeNil)

	cfg, err := LoadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Debug, test.ShouldBeTrue)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.json")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, len(cfg.Axes), test.ShouldEqual, 2)
	test.That(t, cfg.Axes[0].Name, test.ShouldEqual, "ra")
	test.That(t, cfg.Axes[1].Name, test.ShouldEqual, "dec")
	test.That(t, cfg.Axes[0].Driver.Model, test.ShouldEqual, ModelTMC2209S)
	test.That(t, cfg.Axes[0].StepWaveForm, test.ShouldEqual, WaveformSquare)
}
