//go:build tinygo

package core

import "runtime/interrupt"

type interruptState = interrupt.State

// disableInterrupts masks every interrupt and returns the previous state.
// Sections guarded by it must not spin.
func disableInterrupts() interruptState {
	return interrupt.Disable()
}

// restoreInterrupts restores the state saved by disableInterrupts.
func restoreInterrupts(state interruptState) {
	interrupt.Restore(state)
}

func lockRing() interruptState {
	return interrupt.Disable()
}

func unlockRing(state interruptState) {
	interrupt.Restore(state)
}
