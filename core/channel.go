package core

import (
	"context"
	"sync/atomic"
)

// ChannelState is the output state a channel is currently producing.
type ChannelState uint8

const (
	StateOff ChannelState = iota // Waiting to start the next pulse
	StateOn                      // Pulse active
)

func (s ChannelState) String() string {
	if s == StateOn {
		return "on"
	}
	return "off"
}

// QueueKind selects the PhaseQueue variant a channel owns.
type QueueKind uint8

const (
	QueueRing QueueKind = iota
	QueueDoubleBuffer
)

// ChannelStats is a snapshot of a channel's counters.
type ChannelStats struct {
	Channel   uint8
	State     ChannelState
	LastPhase uint32
	Underruns uint32 // Compare events that found the queue empty
	Stalls    uint32 // Pushes that had to wait for space
	Edges     uint32 // Compare events handled
	Queued    int
}

// Channel turns queued phase deltas into compare-register programming for
// one output. The scheduler touches only the queue (through Enqueue); all
// other fields belong to the compare handler.
type Channel struct {
	id      uint8
	binding Binding
	params  Params
	oc      CompareUnit
	q       Queue[PhaseDelta]

	state       ChannelState
	lastPhase   uint32 // rising-edge phase
	lastCompare uint32 // last value written to the compare register

	// state/lastPhase mirrors for foreground readers
	stateView atomic.Uint32
	phaseView atomic.Uint32

	underruns atomic.Uint32
	stalls    atomic.Uint32
	edges     atomic.Uint32
}

// NewChannel creates a channel owning a queue of the given kind.
func NewChannel(id uint8, params Params, kind QueueKind) *Channel {
	c := &Channel{id: id, params: params}
	switch kind {
	case QueueDoubleBuffer:
		c.q = NewDoubleBuffer[PhaseDelta](params.QueueCapacity)
	default:
		c.q = NewRing[PhaseDelta](params.QueueCapacity)
	}
	return c
}

// ID returns the channel identifier.
func (c *Channel) ID() uint8 { return c.id }

// Binding returns the hardware binding set at configuration.
func (c *Channel) Binding() Binding { return c.binding }

// bind attaches the channel to its compare unit and puts the output in the
// inactive state with a zero compare value.
func (c *Channel) bind(b Binding, unit CompareUnit) {
	c.binding = b
	c.oc = unit
	unit.Attach(c.OnCompare)
	c.clear()
}

// unbind detaches the channel from its compare unit and leaves the pin
// forced inactive. The compare interrupt must be masked.
func (c *Channel) unbind() {
	if c.oc == nil {
		return
	}
	c.oc.Release()
	c.oc = nil
	c.q.Reset()
	c.state = StateOff
	c.stateView.Store(uint32(StateOff))
}

// clear returns the channel to its power-on state: queue empty, phase
// zero, pin forced inactive. The compare interrupt must be masked.
func (c *Channel) clear() {
	c.q.Reset()
	c.state = StateOff
	c.lastPhase = 0
	c.lastCompare = 0
	c.stateView.Store(uint32(StateOff))
	c.phaseView.Store(0)
	if c.oc != nil {
		c.oc.InitOutput(c.binding.ActiveLow)
		c.oc.SetOutputInactive()
	}
}

// TryEnqueue pushes a delta without waiting.
func (c *Channel) TryEnqueue(d PhaseDelta) bool {
	return c.q.TryPush(d)
}

// Enqueue pushes a delta, spinning while the queue is full. Deltas are
// never dropped; only ctx ending stops the wait.
func (c *Channel) Enqueue(ctx context.Context, d PhaseDelta) error {
	return PushWait[PhaseDelta](ctx, c.q, d, c.stall)
}

func (c *Channel) stall() {
	RecordTiming(EvtStall, c.id, c.LastPhase(), c.stalls.Add(1), uint32(c.q.Len()))
}

// OnCompare is the compare-match interrupt handler. It runs a fixed number
// of register writes and at most one queue pop.
func (c *Channel) OnCompare() {
	var next uint32
	switch c.state {
	case StateOff:
		c.oc.SetOutputActive()
		d, ok := c.q.Pop()
		if !ok {
			c.lastPhase = c.params.CatchUpPhase(c.lastPhase)
			RecordTiming(EvtUnderrun, c.id, c.lastPhase, c.underruns.Add(1), 0)
		}
		next = c.params.NextPhase(c.lastPhase, d)
		c.oc.SetCompare(next)
		c.lastPhase = next
		c.state = StateOn
	case StateOn:
		c.oc.SetOutputInactive()
		next = c.params.FallingEdge(c.lastCompare)
		c.oc.SetCompare(next)
		c.state = StateOff
	}
	c.lastCompare = next
	c.edges.Add(1)
	c.stateView.Store(uint32(c.state))
	c.phaseView.Store(c.lastPhase)
}

// State returns the state as last published by the handler.
func (c *Channel) State() ChannelState { return ChannelState(c.stateView.Load()) }

// LastPhase returns the rising-edge phase as last published by the handler.
func (c *Channel) LastPhase() uint32 { return c.phaseView.Load() }

// Full reports whether the next TryEnqueue would fail.
func (c *Channel) Full() bool { return c.q.IsFull() }

// Queued returns the number of deltas waiting.
func (c *Channel) Queued() int { return c.q.Len() }

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Channel:   c.id,
		State:     c.State(),
		LastPhase: c.LastPhase(),
		Underruns: c.underruns.Load(),
		Stalls:    c.stalls.Load(),
		Edges:     c.edges.Load(),
		Queued:    c.q.Len(),
	}
}

func (c *Channel) resetStats() {
	c.underruns.Store(0)
	c.stalls.Store(0)
	c.edges.Store(0)
}
