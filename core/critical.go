package core

// Critical runs fn with the step generators excluded.
// fn must be short and must not block: on hardware it runs with interrupts masked.
func Critical(fn func()) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)
	fn()
}
