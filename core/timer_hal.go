package core

// OutputCompare is the capability a channel needs from one compare unit.
// Mode changes take effect from the next match onward; the pin itself is
// driven by the hardware at the match, never by software.
type OutputCompare interface {
	// SetOutputActive makes the next match drive the pin active.
	SetOutputActive()

	// SetOutputInactive makes the next match drive the pin inactive.
	SetOutputInactive()

	// SetCompare programs the match value, in timer ticks.
	SetCompare(value uint32)
}

// CompareUnit is one output-compare sub-unit of a timer peripheral, as seen
// by configuration code.
type CompareUnit interface {
	OutputCompare

	// InitOutput forces the pin inactive with the given polarity, zeroes the
	// compare value and enables the output stage.
	InitOutput(activeLow bool)

	// Attach installs the compare-match interrupt handler.
	Attach(handler func())

	// Release removes the handler, masks the unit's interrupt and leaves
	// the pin forced inactive with no further matches acting on it.
	Release()
}

// TimerPeripheral abstracts one hardware timer. Platform-specific
// implementations handle the register layout.
type TimerPeripheral interface {
	// Name identifies the peripheral in logs (e.g. "TIM2").
	Name() string

	Pause()
	Resume()

	// Count reads the counter register.
	Count() uint32
	SetCount(v uint32)

	// SetPrescale sets the input clock division factor (>= 1). On a running
	// peripheral it takes effect at the next update event; on a paused one
	// immediately.
	SetPrescale(factor uint32)

	// SetPeriod sets the auto-reload value; the counter runs 0..top.
	SetPeriod(top uint32)

	// ConfigureMaster makes the peripheral free-running and routes its
	// enable and update events to the trigger output.
	ConfigureMaster(opts Options)

	// ConfigureSlave links the peripheral's trigger input to master.
	ConfigureSlave(master TimerPeripheral, opts Options) error

	// Unit returns compare unit n (1-based).
	Unit(n uint8) (CompareUnit, error)

	// SetInterruptsEnabled masks or unmasks the compare interrupts of every
	// unit that has a handler attached.
	SetInterruptsEnabled(enabled bool)
}

// Options tunes peripheral setup shared by the whole group.
type Options struct {
	// OverflowOnlyUpdate restricts update events to counter overflow, so
	// software counter writes do not raise one.
	OverflowOnlyUpdate bool
}
