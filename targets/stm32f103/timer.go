//go:build stm32f103

package main

import (
	"device/stm32"
	"runtime/volatile"

	"slink/core"
)

// TIMx register bits used here.
const (
	cr1CEN = 1 << 0
	cr1URS = 1 << 2

	cr2MMSUpdate = 0b010 << 4

	smcrTSMask   = 0b111 << 4
	smcrSMSMask  = 0b111
	smcrSMSReset = 0b100

	egrUG = 1 << 0

	ocModeActive        = 0b001
	ocModeInactive      = 0b010
	ocModeForceInactive = 0b100
	ocModeMask          = 0b111
)

// timer drives one general-purpose timer (TIM2..TIM4). Slaves run in reset
// mode on the master's update trigger, so every master overflow restarts
// them at zero together with the master.
type timer struct {
	name string
	regs *stm32.TIM_Type
	itr  uint32 // trigger input carrying TIM2's TRGO

	units  [4]unit
	slaves []*timer
	irqs   uint32 // DIER bits of units with a handler
}

var _ core.TimerPeripheral = (*timer)(nil)

func newTimer(name string, regs *stm32.TIM_Type, itr uint32) *timer {
	t := &timer{name: name, regs: regs, itr: itr}
	for i := range t.units {
		t.units[i] = unit{t: t, n: uint8(i + 1)}
	}
	return t
}

func (t *timer) Name() string { return t.name }

func (t *timer) Pause() { t.regs.CR1.ClearBits(cr1CEN) }

// Resume starts the slaves first so the master's counter, which resets
// them at its next overflow, never runs without them.
func (t *timer) Resume() {
	for _, s := range t.slaves {
		s.regs.CR1.SetBits(cr1CEN)
	}
	t.regs.CR1.SetBits(cr1CEN)
}

func (t *timer) Count() uint32 { return t.regs.CNT.Get() }

func (t *timer) SetCount(v uint32) { t.regs.CNT.Set(v) }

// SetPrescale writes the preload register. A paused timer gets a software
// update so the value is latched before the counter starts.
func (t *timer) SetPrescale(factor uint32) {
	if factor == 0 {
		factor = 1
	}
	t.regs.PSC.Set(factor - 1)
	if !t.regs.CR1.HasBits(cr1CEN) {
		t.regs.EGR.Set(egrUG)
		t.regs.SR.Set(0)
	}
}

func (t *timer) SetPeriod(top uint32) { t.regs.ARR.Set(top) }

func (t *timer) ConfigureMaster(opts core.Options) {
	t.applyOptions(opts)
	t.regs.SMCR.ClearBits(smcrSMSMask | smcrTSMask)
	t.regs.CR2.ReplaceBits(cr2MMSUpdate, 0b111<<4, 0)
}

func (t *timer) ConfigureSlave(master core.TimerPeripheral, opts core.Options) error {
	m, ok := master.(*timer)
	if !ok || m == t {
		return core.ErrUnknownPeripheral
	}
	t.applyOptions(opts)
	t.regs.SMCR.ReplaceBits(t.itr<<4|smcrSMSReset, smcrTSMask|smcrSMSMask, 0)
	for _, s := range m.slaves {
		if s == t {
			return nil
		}
	}
	m.slaves = append(m.slaves, t)
	return nil
}

func (t *timer) applyOptions(opts core.Options) {
	if opts.OverflowOnlyUpdate {
		t.regs.CR1.SetBits(cr1URS)
	} else {
		t.regs.CR1.ClearBits(cr1URS)
	}
}

func (t *timer) Unit(n uint8) (core.CompareUnit, error) {
	if n < 1 || int(n) > len(t.units) {
		return nil, core.ErrUnknownUnit
	}
	return &t.units[n-1], nil
}

func (t *timer) SetInterruptsEnabled(enabled bool) {
	if enabled {
		t.regs.DIER.SetBits(t.irqs)
	} else {
		t.regs.DIER.ClearBits(0b11110)
	}
}

// isr serves the timer's interrupt: every pending compare flag is cleared
// before its handler runs.
func (t *timer) isr() {
	sr := t.regs.SR.Get() & t.regs.DIER.Get()
	for i := range t.units {
		flag := uint32(1) << (i + 1)
		if sr&flag == 0 {
			continue
		}
		t.regs.SR.Set(^flag)
		if h := t.units[i].handler; h != nil {
			h()
		}
	}
}

// unit is one capture/compare channel in output-compare mode.
type unit struct {
	t       *timer
	n       uint8
	handler func()
}

func (u *unit) ccmr() (*volatile.Register32, uint8) {
	shift := uint8(4 + 8*((u.n-1)%2))
	if u.n <= 2 {
		return &u.t.regs.CCMR1_Output, shift
	}
	return &u.t.regs.CCMR2_Output, shift
}

func (u *unit) setMode(mode uint32) {
	reg, shift := u.ccmr()
	reg.ReplaceBits(mode, ocModeMask, shift)
}

func (u *unit) ccr() *volatile.Register32 {
	switch u.n {
	case 1:
		return &u.t.regs.CCR1
	case 2:
		return &u.t.regs.CCR2
	case 3:
		return &u.t.regs.CCR3
	}
	return &u.t.regs.CCR4
}

func (u *unit) InitOutput(activeLow bool) {
	u.setMode(ocModeForceInactive)
	u.ccr().Set(0)
	shift := 4 * (u.n - 1)
	pol := uint32(0)
	if activeLow {
		pol = 1 << 1
	}
	u.t.regs.CCER.ReplaceBits(1|pol, 0b11, shift)
}

func (u *unit) Attach(handler func()) {
	u.handler = handler
	u.t.irqs |= 1 << u.n
}

func (u *unit) Release() {
	bit := uint32(1) << u.n
	u.t.irqs &^= bit
	u.t.regs.DIER.ClearBits(bit)
	u.handler = nil
	u.setMode(ocModeForceInactive)
}

func (u *unit) SetOutputActive() { u.setMode(ocModeActive) }

func (u *unit) SetOutputInactive() { u.setMode(ocModeInactive) }

func (u *unit) SetCompare(value uint32) { u.ccr().Set(value) }
