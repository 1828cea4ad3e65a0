package core

// DriverStatus is the fault and diagnostic state reported by a microstep driver
type DriverStatus struct {
	ShortToGroundA  bool
	ShortToGroundB  bool
	OpenLoadA       bool
	OpenLoadB       bool
	OverTemperature bool
	OverTempWarning bool
	Standstill      bool
	// Fault is set when the driver reports an error or cannot be reached
	Fault bool
}

// MicrostepDriver defines the hardware abstraction for the microstep driver chip
// behind a step/dir axis. Implementations may drive mode pins, a UART or SPI.
//
// The mode methods are called from control context only, never from a step
// generator, and may take as long as a bus transaction.
type MicrostepDriver interface {
	// Init prepares the driver for axis with the tracking microstep
	// count and run current (mA, 0 = leave as is)
	Init(axis uint8, microsteps int, current int) error

	// MicrostepRatio returns the number of microsteps in one full step
	// at the tracking resolution
	MicrostepRatio() int

	// ModeSwitchAllowed reports whether microstep resolution can be
	// changed between tracking and slewing
	ModeSwitchAllowed() bool

	// ModeMicrostepTracking selects the tracking microstep resolution
	ModeMicrostepTracking()

	// ModeMicrostepSlewing selects the slewing microstep resolution and
	// returns how many tracking microsteps each slewing step covers
	ModeMicrostepSlewing() int

	// ModeDecayTracking selects the decay (chopper) mode used while tracking
	ModeDecayTracking()

	// ModeDecaySlewing selects the decay (chopper) mode used while slewing
	ModeDecaySlewing()

	// Power energizes or releases the motor when no enable pin is wired
	Power(on bool)

	// UpdateStatus refreshes the status returned by Status
	UpdateStatus()

	// Status returns the last status read by UpdateStatus
	Status() DriverStatus
}

// MicrostepDriverInfo describes a driver implementation
type MicrostepDriverInfo struct {
	Name          string
	MaxMicrosteps int
	SwitchesMode  bool // Microsteps can change at runtime
	ReportsStatus bool // Status reflects real fault flags
}
