package sim

import (
	"context"
	"fmt"

	"slink/config"
	"slink/core"
)

// BoardEdges bounds the edge trace kept per compare unit of a Board.
const BoardEdges = 4096

// Board is a simulated target assembled from a preset: one bus, the
// preset's timers, a configured group and its scheduler.
type Board struct {
	Preset *config.Preset
	Bus    *Bus
	Timers []*Timer
	Group  *core.TimerGroup
	Sched  *core.Scheduler
}

// NewBoard builds and configures a board. The group is left stopped.
func NewBoard(p *config.Preset) (*Board, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b := &Board{Preset: p, Bus: NewBus()}
	periphs := make([]core.TimerPeripheral, len(p.Timers))
	for i, name := range p.Timers {
		t := b.Bus.NewTimer(name)
		for _, u := range t.units {
			u.MaxEdges = BoardEdges
		}
		b.Timers = append(b.Timers, t)
		periphs[i] = t
	}

	b.Group = core.NewTimerGroup(p.Params(), periphs[0], periphs[1:]...)
	b.Group.SetQueueKind(p.QueueKind())
	b.Group.SetOptions(p.Options())
	if err := b.Group.Configure(p.Bindings(), p.PrescaleFactor()); err != nil {
		return nil, fmt.Errorf("configure %s: %w", p.Name, err)
	}

	b.Sched = core.NewScheduler(b.Group, p.Modes(), *p.AutoAdvance)
	b.Sched.SetBaseDelta(core.PhaseDelta(p.BaseDelta))
	return b, nil
}

// Period returns the input cycles in one master period.
func (b *Board) Period() uint64 {
	return uint64(b.Group.Params().TimerCount) * uint64(b.Group.Prescale())
}

// RunPeriods starts the group if needed and runs n master periods, topping
// up every queue before each one.
func (b *Board) RunPeriods(ctx context.Context, n int) error {
	if !b.Group.Running() {
		if err := b.Group.Start(); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Sched.Fill()
		b.Bus.Advance(b.Period())
	}
	return nil
}

// Unit returns the simulated compare unit bound to channel id.
func (b *Board) Unit(id uint8) *Unit {
	ch, err := b.Group.Channel(id)
	if err != nil {
		return nil
	}
	bind := ch.Binding()
	return b.Timers[bind.Timer].SimUnit(bind.Unit)
}
