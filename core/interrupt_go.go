//go:build !tinygo

package core

import "sync"

// interruptState stands in for the saved interrupt mask on the host. The
// simulated target delivers compare events synchronously from its tick loop,
// so there is nothing to mask.
type interruptState uintptr

func disableInterrupts() interruptState {
	return 0
}

func restoreInterrupts(interruptState) {}

// Host tools may record and read timing events from different goroutines.
var ringMu sync.Mutex

func lockRing() interruptState {
	ringMu.Lock()
	return 0
}

func unlockRing(interruptState) {
	ringMu.Unlock()
}
