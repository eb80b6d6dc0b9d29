//go:build stm32f103

package main

import (
	"machine"

	"tinygo.org/x/drivers/encoders"

	"slink/core"
)

// knob selects the animation mode with a quadrature encoder: each detent
// moves one mode along the playlist.
type knob struct {
	enc  *encoders.QuadratureDevice
	last int
}

func newKnob(a, b machine.Pin) *knob {
	enc := encoders.NewQuadratureViaInterrupt(a, b)
	enc.Configure(encoders.QuadratureConfig{Precision: 4})
	return &knob{enc: enc, last: enc.Position()}
}

// poll applies any turn since the last call to sched.
func (k *knob) poll(sched *core.Scheduler) {
	pos := k.enc.Position()
	if pos == k.last {
		return
	}
	step := pos - k.last
	k.last = pos
	n := sched.Modes()
	sched.SetMode(((sched.Mode()+step)%n + n) % n)
}
