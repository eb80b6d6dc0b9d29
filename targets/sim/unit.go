package sim

import "slink/core"

type outputMode uint8

const (
	modeFrozen outputMode = iota
	modeActive
	modeInactive
)

// Edge is one recorded transition of a compare unit's pin.
type Edge struct {
	Clock  uint64 // bus cycle of the transition
	Count  uint32 // timer counter at the transition
	Active bool   // logical level after the transition
	High   bool   // electrical level after the transition
}

// Unit is an output-compare unit. At a match it first applies its output
// mode to the pin, then calls the handler if interrupts are unmasked.
type Unit struct {
	timer *Timer
	n     uint8

	enabled   bool
	activeLow bool
	mode      outputMode
	compare   uint32
	level     bool

	handler func()
	edges   []Edge
	matches uint64

	// MaxEdges bounds the recorded trace; zero keeps everything.
	MaxEdges int
}

var _ core.CompareUnit = (*Unit)(nil)

// InitOutput forces the pin inactive and enables the output stage.
func (u *Unit) InitOutput(activeLow bool) {
	u.activeLow = activeLow
	u.mode = modeFrozen
	u.compare = 0
	u.enabled = true
	u.drive(false)
	u.timer.bus.access()
}

// Attach installs the compare handler.
func (u *Unit) Attach(handler func()) {
	u.handler = handler
}

// Release implements core.CompareUnit. The output stage is disabled, so
// the unit records no further matches.
func (u *Unit) Release() {
	u.handler = nil
	u.mode = modeFrozen
	u.drive(false)
	u.enabled = false
	u.timer.bus.access()
}

// SetOutputActive implements core.OutputCompare.
func (u *Unit) SetOutputActive() {
	u.mode = modeActive
	u.timer.bus.access()
}

// SetOutputInactive implements core.OutputCompare.
func (u *Unit) SetOutputInactive() {
	u.mode = modeInactive
	u.timer.bus.access()
}

// SetCompare implements core.OutputCompare.
func (u *Unit) SetCompare(value uint32) {
	u.compare = value
	u.timer.bus.access()
}

// Compare returns the programmed match value.
func (u *Unit) Compare() uint32 { return u.compare }

// Active reports the logical pin level.
func (u *Unit) Active() bool { return u.level }

// High reports the electrical pin level.
func (u *Unit) High() bool { return u.level != u.activeLow }

// Matches counts compare matches.
func (u *Unit) Matches() uint64 { return u.matches }

// Edges returns the recorded pin transitions.
func (u *Unit) Edges() []Edge { return u.edges }

// ClearEdges drops the recorded trace.
func (u *Unit) ClearEdges() { u.edges = u.edges[:0] }

// OnDurations returns the active time, in bus cycles, of every complete
// pulse in the trace.
func (u *Unit) OnDurations() []uint64 {
	var out []uint64
	var rise uint64
	var high bool
	for _, e := range u.edges {
		switch {
		case e.Active && !high:
			rise, high = e.Clock, true
		case !e.Active && high:
			out = append(out, e.Clock-rise)
			high = false
		}
	}
	return out
}

// Rises returns the bus cycle of every rising edge in the trace.
func (u *Unit) Rises() []uint64 {
	var out []uint64
	for _, e := range u.edges {
		if e.Active {
			out = append(out, e.Clock)
		}
	}
	return out
}

func (u *Unit) match() {
	u.matches++
	switch u.mode {
	case modeActive:
		u.drive(true)
	case modeInactive:
		u.drive(false)
	}
	if u.timer.irq && u.handler != nil {
		u.handler()
	}
}

func (u *Unit) drive(active bool) {
	if u.level == active {
		return
	}
	u.level = active
	if u.MaxEdges > 0 && len(u.edges) >= u.MaxEdges {
		copy(u.edges, u.edges[1:])
		u.edges = u.edges[:len(u.edges)-1]
	}
	u.edges = append(u.edges, Edge{
		Clock:  u.timer.bus.clock,
		Count:  u.timer.count,
		Active: active,
		High:   active != u.activeLow,
	})
}
