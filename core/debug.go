package core

import "fmt"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Logger is the leveled, printf-style logger used by the motion code.
// A zap SugaredLogger (golog.Logger) satisfies it directly.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis number
	Clock     uint64 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtPeriodChange = 1 // New period installed (v1=period, v2=mode)
	EvtPeriodReject = 2 // Frequency out of range, axis stopped
	EvtModeChange   = 3 // Microstep mode state changed (v1=from, v2=to)
	EvtISRSwap      = 4 // Step generator variant swapped (v1=variant)
	EvtDriverMode   = 5 // Driver microstep mode set (v1=0 tracking/1 slewing, v2=slewStep)
	EvtPulseDrop    = 6 // Step pulses lost by the pin driver (v1=count)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug-level output is active
	debugEnabled bool = false

	// Timing capture ring buffer (control context only, for post-mortem)
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug-level output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// debugLogger adapts a DebugWriter to Logger
type debugLogger struct {
	prefix string
}

// NewDebugLogger returns a Logger that prints through the debug writer.
// Debug-level messages are dropped unless SetDebugEnabled(true).
func NewDebugLogger(prefix string) Logger {
	return debugLogger{prefix: prefix}
}

func (l debugLogger) Debugf(template string, args ...interface{}) {
	if debugEnabled {
		l.write("DEBUG", template, args)
	}
}

func (l debugLogger) Infof(template string, args ...interface{}) {
	l.write("INFO", template, args)
}

func (l debugLogger) Warnf(template string, args ...interface{}) {
	l.write("WARN", template, args)
}

func (l debugLogger) write(level, template string, args []interface{}) {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[" + level + "] " + l.prefix + fmt.Sprintf(template, args...))
}

// RecordTiming captures a timing event in the ring buffer.
// Control context only: never call it from a task callback or inside Critical.
func RecordTiming(eventType, axis uint8, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	clock := GetTime()
	Critical(func() {
		idx := timingRingHead
		timingRing[idx] = TimingEvent{
			EventType: eventType,
			Axis:      axis,
			Clock:     clock,
			Value1:    value1,
			Value2:    value2,
		}
		timingRingHead = (idx + 1) % TimingRingSize
	})
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	var events []TimingEvent
	Critical(func() {
		start := timingRingHead
		for i := uint8(0); i < TimingRingSize; i++ {
			evt := timingRing[(start+i)%TimingRingSize]
			if evt.EventType == 0 {
				continue // Empty slot
			}
			events = append(events, evt)
		}
	})
	return events
}

// DumpTimingRing outputs the timing ring buffer (call on shutdown/error)
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		var name string
		switch evt.EventType {
		case EvtPeriodChange:
			name = "PERIOD"
		case EvtPeriodReject:
			name = "PERIOD_REJECT!"
		case EvtModeChange:
			name = "MODE"
		case EvtISRSwap:
			name = "ISR_SWAP"
		case EvtDriverMode:
			name = "DRIVER_MODE"
		case EvtPulseDrop:
			name = "PULSE_DROP!"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TIMING] " + name +
			" axis=" + itoa(int(evt.Axis)) +
			" clock=" + utoa64(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	Critical(func() {
		for i := range timingRing {
			timingRing[i] = TimingEvent{}
		}
		timingRingHead = 0
	})
}
