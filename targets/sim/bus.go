// Package sim models STM32-style general-purpose timers closely enough to
// run the core against them on the host: preloaded prescalers latched at
// update events, master/slave trigger links, output-compare units that
// drive a pin at the match and then raise their interrupt.
package sim

// Bus is the shared input clock of a set of simulated timers. Register
// accesses made outside interrupt context cost AccessCost cycles, which is
// how time passes while foreground code polls a counter.
type Bus struct {
	timers []*Timer
	clock  uint64

	// AccessCost is the number of input clock cycles one register access
	// takes when made from the foreground.
	AccessCost uint32

	ticking bool
	desync  uint64
	updates uint64
}

// NewBus creates a bus with a one-cycle register access cost.
func NewBus() *Bus {
	return &Bus{AccessCost: 1}
}

// NewTimer adds a timer with four compare units to the bus.
func (b *Bus) NewTimer(name string) *Timer {
	t := &Timer{bus: b, name: name, top: 0xFFFF, prescale: 1, pending: 1}
	for i := range t.units {
		t.units[i] = &Unit{timer: t, n: uint8(i + 1)}
	}
	b.timers = append(b.timers, t)
	return t
}

// Clock returns the number of input cycles elapsed.
func (b *Bus) Clock() uint64 { return b.clock }

// DesyncCycles counts cycles during which two running timers used
// different prescale factors.
func (b *Bus) DesyncCycles() uint64 { return b.desync }

// Updates counts master update events.
func (b *Bus) Updates() uint64 { return b.updates }

// Advance runs the bus for n input cycles.
func (b *Bus) Advance(n uint64) {
	if b.ticking {
		return
	}
	b.ticking = true
	defer func() { b.ticking = false }()

	for i := uint64(0); i < n; i++ {
		b.clock++
		for _, t := range b.timers {
			if t.master == nil {
				t.step()
			}
		}
		b.checkSync()
	}
}

// RunUntil advances one cycle at a time until done returns true or limit
// cycles have elapsed. It reports whether done was satisfied.
func (b *Bus) RunUntil(done func() bool, limit uint64) bool {
	for i := uint64(0); i < limit; i++ {
		if done() {
			return true
		}
		b.Advance(1)
	}
	return done()
}

func (b *Bus) access() {
	if b.AccessCost > 0 && !b.ticking {
		b.Advance(uint64(b.AccessCost))
	}
}

func (b *Bus) checkSync() {
	var ref uint32
	for _, t := range b.timers {
		if !t.running {
			continue
		}
		if ref == 0 {
			ref = t.prescale
			continue
		}
		if t.prescale != ref {
			b.desync++
			return
		}
	}
}
