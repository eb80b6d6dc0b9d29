package sim

import (
	"errors"

	"slink/core"
)

// ErrForeignMaster is returned when a slave is linked to a timer that does
// not live on the same bus.
var ErrForeignMaster = errors.New("sim: master is not a timer on this bus")

// Timer is an up-counting timer with a preloaded prescaler and four
// compare units.
type Timer struct {
	bus  *Bus
	name string

	running bool
	count   uint32
	top     uint32

	prescale uint32 // effective division factor
	pending  uint32 // preload, latched at update
	div      uint32

	master *Timer
	slaves []*Timer
	opts   core.Options

	irq   bool
	units [4]*Unit

	updates uint64
}

var _ core.TimerPeripheral = (*Timer)(nil)

// Name implements core.TimerPeripheral.
func (t *Timer) Name() string { return t.name }

// Pause stops the counter.
func (t *Timer) Pause() {
	t.running = false
	t.bus.access()
}

// Resume starts the counter. A master emits its enable trigger, which
// starts its slaves.
func (t *Timer) Resume() {
	t.running = true
	for _, s := range t.slaves {
		s.running = true
	}
	t.bus.access()
}

// Count reads the counter register.
func (t *Timer) Count() uint32 {
	v := t.count
	t.bus.access()
	return v
}

// SetCount writes the counter register and clears the prescale divider.
func (t *Timer) SetCount(v uint32) {
	t.count = v
	t.div = 0
	t.bus.access()
}

// SetPrescale writes the prescale preload.
func (t *Timer) SetPrescale(factor uint32) {
	if factor == 0 {
		factor = 1
	}
	t.pending = factor
	if !t.running {
		t.prescale = factor
	}
	t.bus.access()
}

// SetPeriod writes the auto-reload register.
func (t *Timer) SetPeriod(top uint32) {
	t.top = top
	t.bus.access()
}

// ConfigureMaster implements core.TimerPeripheral.
func (t *Timer) ConfigureMaster(opts core.Options) {
	if t.master != nil {
		t.master.unlink(t)
		t.master = nil
	}
	t.opts = opts
	t.bus.access()
}

// ConfigureSlave puts the timer in trigger mode behind master.
func (t *Timer) ConfigureSlave(master core.TimerPeripheral, opts core.Options) error {
	m, ok := master.(*Timer)
	if !ok || m.bus != t.bus || m == t {
		return ErrForeignMaster
	}
	if t.master != nil {
		t.master.unlink(t)
	}
	t.master = m
	m.slaves = append(m.slaves, t)
	t.opts = opts
	t.bus.access()
	return nil
}

func (t *Timer) unlink(s *Timer) {
	for i, x := range t.slaves {
		if x == s {
			t.slaves = append(t.slaves[:i], t.slaves[i+1:]...)
			return
		}
	}
}

// Unit returns compare unit n (1..4).
func (t *Timer) Unit(n uint8) (core.CompareUnit, error) {
	if n < 1 || int(n) > len(t.units) {
		return nil, core.ErrUnknownUnit
	}
	return t.units[n-1], nil
}

// SetInterruptsEnabled masks or unmasks the compare interrupts.
func (t *Timer) SetInterruptsEnabled(enabled bool) {
	t.irq = enabled
	t.bus.access()
}

// Counter returns the counter without costing a bus access.
func (t *Timer) Counter() uint32 { return t.count }

// Prescaler returns the effective division factor.
func (t *Timer) Prescaler() uint32 { return t.prescale }

// Running reports whether the counter is enabled.
func (t *Timer) Running() bool { return t.running }

// UpdateEvents counts overflows of this timer.
func (t *Timer) UpdateEvents() uint64 { return t.updates }

// Options returns the options applied at configuration.
func (t *Timer) Options() core.Options { return t.opts }

// SimUnit returns compare unit n with its simulation accessors.
func (t *Timer) SimUnit(n uint8) *Unit {
	if n < 1 || int(n) > len(t.units) {
		return nil
	}
	return t.units[n-1]
}

// step advances the timer by one input cycle. Slaves are stepped by their
// master so a reset trigger and the slave's own tick land in order.
func (t *Timer) step() {
	if !t.running {
		return
	}
	t.div++
	if t.div < t.prescale {
		for _, s := range t.slaves {
			s.step()
		}
		return
	}
	t.div = 0
	if t.count >= t.top {
		t.count = 0
		t.update()
		if t.master == nil {
			t.bus.updates++
			for _, s := range t.slaves {
				s.trigger()
			}
		}
	} else {
		t.count++
		for _, s := range t.slaves {
			s.step()
		}
	}
	t.matchAll()
}

// trigger is the slave reaction to the master's update trigger: restart
// from zero as if the slave had overflowed too.
func (t *Timer) trigger() {
	t.running = true
	if t.count != 0 {
		t.count = 0
		t.update()
		t.matchAll()
	} else {
		t.update()
	}
	t.div = 0
}

func (t *Timer) update() {
	t.prescale = t.pending
	t.updates++
}

func (t *Timer) matchAll() {
	for _, u := range t.units {
		if u.enabled && u.compare == t.count {
			u.match()
		}
	}
}
