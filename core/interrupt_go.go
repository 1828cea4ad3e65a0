//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMu stands in for the timer interrupt mask on regular Go. The software
// dispatcher holds it while task callbacks run, so holding it from control
// context keeps every step generator out.
var irqMu sync.Mutex

// DisableInterrupts excludes the software dispatcher until RestoreInterrupts.
// Not reentrant: never call it from a task callback.
func DisableInterrupts() State {
	irqMu.Lock()
	return 0
}

// RestoreInterrupts releases the exclusion taken by DisableInterrupts
func RestoreInterrupts(state State) {
	irqMu.Unlock()
}
