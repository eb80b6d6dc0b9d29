package core

import (
	"context"
	"sync/atomic"
)

// Binding maps a channel onto a compare unit of one peripheral in the
// group. Timer 0 is the master; slaves follow in the order given to
// NewTimerGroup.
type Binding struct {
	Channel   uint8
	Timer     uint8
	Unit      uint8 // 1-based compare unit
	Pin       uint8 // board pin, informational for the core
	ActiveLow bool
}

// TimerGroup runs a master timer and its slaves as one clock and owns the
// channels bound to their compare units.
//
// Every method is foreground-only. Register writes happen with the group
// paused, except ReconfigurePrescale which relies on the guard window.
type TimerGroup struct {
	params   Params
	opts     Options
	kind     QueueKind
	timers   []TimerPeripheral
	channels []*Channel
	byID     [ChannelCount]*Channel

	prescale   uint32
	configured bool
	running    atomic.Bool

	guardWaits atomic.Uint32
}

// NewTimerGroup creates a group around master and its slaves.
func NewTimerGroup(params Params, master TimerPeripheral, slaves ...TimerPeripheral) *TimerGroup {
	timers := make([]TimerPeripheral, 0, 1+len(slaves))
	timers = append(timers, master)
	timers = append(timers, slaves...)
	return &TimerGroup{
		params:   params,
		timers:   timers,
		prescale: 1,
	}
}

// SetQueueKind selects the queue variant for channels created by Configure.
func (g *TimerGroup) SetQueueKind(kind QueueKind) { g.kind = kind }

// SetOptions sets peripheral options applied by Configure.
func (g *TimerGroup) SetOptions(opts Options) { g.opts = opts }

// Params returns the timing parameters of the group.
func (g *TimerGroup) Params() Params { return g.params }

// Prescale returns the division factor last written to the group.
func (g *TimerGroup) Prescale() uint32 { return g.prescale }

// Running reports whether the master is counting.
func (g *TimerGroup) Running() bool { return g.running.Load() }

// Channels returns the configured channels in binding order.
func (g *TimerGroup) Channels() []*Channel { return g.channels }

// Channel returns a configured channel by id.
func (g *TimerGroup) Channel(id uint8) (*Channel, error) {
	if int(id) >= len(g.byID) || g.byID[id] == nil {
		return nil, ErrUnknownChannel
	}
	return g.byID[id], nil
}

// GuardWaits counts synchronized prescale changes that had to wait.
func (g *TimerGroup) GuardWaits() uint32 { return g.guardWaits.Load() }

// ValidateBindings rejects a binding table before anything touches the
// hardware: every unit may be bound once, every channel once.
func (g *TimerGroup) ValidateBindings(bindings []Binding) error {
	var usedChannel [ChannelCount]bool
	used := make(map[uint16]struct{}, len(bindings))
	for _, b := range bindings {
		if int(b.Channel) >= ChannelCount {
			return &BindingError{Binding: b, Err: ErrChannelRange}
		}
		if usedChannel[b.Channel] {
			return &BindingError{Binding: b, Err: ErrDuplicateChannel}
		}
		usedChannel[b.Channel] = true
		if int(b.Timer) >= len(g.timers) {
			return &BindingError{Binding: b, Err: ErrUnknownPeripheral}
		}
		key := uint16(b.Timer)<<8 | uint16(b.Unit)
		if _, dup := used[key]; dup {
			return &BindingError{Binding: b, Err: ErrBindingConflict}
		}
		used[key] = struct{}{}
	}
	return nil
}

// Configure programs period, prescale and the master/slave links, and binds
// one channel per table entry. Units bound by the previous table are
// released first. The group must be stopped. A rejected table, or a slave
// that refuses its master, leaves the previous channels bound.
func (g *TimerGroup) Configure(bindings []Binding, prescale uint32) error {
	if g.running.Load() {
		return ErrGroupRunning
	}
	if err := g.params.Validate(); err != nil {
		return err
	}
	if err := g.ValidateBindings(bindings); err != nil {
		return err
	}
	units := make([]CompareUnit, len(bindings))
	for i, b := range bindings {
		u, err := g.timers[b.Timer].Unit(b.Unit)
		if err != nil {
			return &BindingError{Binding: b, Err: ErrUnknownUnit}
		}
		units[i] = u
	}
	if prescale == 0 {
		prescale = 1
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	g.Stop()
	g.setInterrupts(false)
	defer g.setInterrupts(true)

	master := g.timers[0]
	master.SetPeriod(g.params.TimerCount - 1)
	master.ConfigureMaster(g.opts)
	for _, t := range g.timers[1:] {
		t.SetPeriod(g.params.TimerCount - 1)
		if err := t.ConfigureSlave(master, g.opts); err != nil {
			return err
		}
	}
	g.writePrescale(prescale)

	for _, ch := range g.channels {
		ch.unbind()
	}
	g.channels = g.channels[:0]
	g.byID = [ChannelCount]*Channel{}
	for i, b := range bindings {
		ch := NewChannel(b.Channel, g.params, g.kind)
		ch.bind(b, units[i])
		g.channels = append(g.channels, ch)
		g.byID[b.Channel] = ch
	}
	g.configured = true
	return nil
}

// Start resumes the master; the slaves start from its trigger.
func (g *TimerGroup) Start() error {
	if !g.configured {
		return ErrNotConfigured
	}
	g.timers[0].Resume()
	g.running.Store(true)
	return nil
}

// Stop pauses every peripheral, then zeroes every counter. Pausing comes
// first so no running counter can overwrite a zero.
func (g *TimerGroup) Stop() {
	for _, t := range g.timers {
		t.Pause()
	}
	for _, t := range g.timers {
		t.SetCount(0)
	}
	g.running.Store(false)
}

// Reset aborts the animation: the group is stopped with compare interrupts
// masked, every queue, phase and state is cleared, the outputs are forced
// inactive, and the group is resumed if it was running.
func (g *TimerGroup) Reset() error {
	if !g.configured {
		return ErrNotConfigured
	}
	wasRunning := g.running.Load()

	state := disableInterrupts()
	g.setInterrupts(false)
	g.Stop()
	for _, ch := range g.channels {
		ch.clear()
		ch.resetStats()
	}
	g.setInterrupts(true)
	restoreInterrupts(state)

	RecordTiming(EvtGroupReset, 0, 0, uint32(len(g.channels)), 0)
	if wasRunning {
		return g.Start()
	}
	return nil
}

// ReconfigurePrescale writes a new division factor to every peripheral.
//
// With synchronized set, it first waits for the master counter to leave the
// guard window before overflow, so every peripheral latches the new value
// at the same update event. Without it the caller accepts one period in
// which the peripherals may count at different rates.
func (g *TimerGroup) ReconfigurePrescale(ctx context.Context, factor uint32, synchronized bool) error {
	if !g.configured {
		return ErrNotConfigured
	}
	if factor == 0 {
		factor = 1
	}
	if synchronized && g.running.Load() {
		if err := g.waitOutsideGuard(ctx); err != nil {
			return err
		}
	}
	g.writePrescale(factor)
	return nil
}

func (g *TimerGroup) waitOutsideGuard(ctx context.Context) error {
	master := g.timers[0]
	limit := g.params.GuardLimit()
	if master.Count() < limit {
		return nil
	}
	g.guardWaits.Add(1)
	RecordTiming(EvtGuardWait, 0, master.Count(), limit, 0)
	for master.Count() >= limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		Yield()
	}
	return nil
}

func (g *TimerGroup) writePrescale(factor uint32) {
	for _, t := range g.timers {
		t.SetPrescale(factor)
	}
	g.prescale = factor
	RecordTiming(EvtPrescale, 0, g.timers[0].Count(), factor, 0)
}

func (g *TimerGroup) setInterrupts(enabled bool) {
	for _, t := range g.timers {
		t.SetInterruptsEnabled(enabled)
	}
}

// Enqueue hands a delta to a channel, blocking while its queue is full.
func (g *TimerGroup) Enqueue(ctx context.Context, id uint8, d PhaseDelta) error {
	ch, err := g.Channel(id)
	if err != nil {
		return err
	}
	return ch.Enqueue(ctx, d)
}

// Stats returns a snapshot for every channel in binding order.
func (g *TimerGroup) Stats() []ChannelStats {
	out := make([]ChannelStats, len(g.channels))
	for i, ch := range g.channels {
		out[i] = ch.Stats()
	}
	return out
}
