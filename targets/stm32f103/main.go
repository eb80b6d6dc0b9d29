//go:build stm32f103

// Firmware for a Blue Pill class STM32F103: twelve strobe outputs on
// TIM2..TIM4, the control link on USART1 and a mode knob on PB12/PB13.
package main

import (
	"context"
	"device/stm32"
	"machine"
	"runtime"
	"runtime/interrupt"

	"slink/core"
)

var tim2, tim3, tim4 *timer

func main() {
	uart := machine.Serial
	uart.Configure(machine.UARTConfig{BaudRate: 115200})

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.High()

	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_TIM2EN | stm32.RCC_APB1ENR_TIM3EN | stm32.RCC_APB1ENR_TIM4EN)
	tim2 = newTimer("TIM2", stm32.TIM2, 0)
	tim3 = newTimer("TIM3", stm32.TIM3, 1) // ITR1 = TIM2
	tim4 = newTimer("TIM4", stm32.TIM4, 1) // ITR1 = TIM2

	irq2 := interrupt.New(stm32.IRQ_TIM2, func(interrupt.Interrupt) { tim2.isr() })
	irq3 := interrupt.New(stm32.IRQ_TIM3, func(interrupt.Interrupt) { tim3.isr() })
	irq4 := interrupt.New(stm32.IRQ_TIM4, func(interrupt.Interrupt) { tim4.isr() })

	params := core.DefaultParams()
	bindings := core.DefaultBindings()
	for _, b := range bindings {
		machine.Pin(b.Pin).Configure(machine.PinConfig{
			Mode: machine.PinOutput50MHz + machine.PinOutputModeAltPushPull,
		})
	}

	group := core.NewTimerGroup(params, tim2, tim3, tim4)
	group.SetOptions(core.Options{OverflowOnlyUpdate: true})
	if err := group.Configure(bindings, params.PrescaleFor(core.ClockFrequency, core.BaseFrequency)); err != nil {
		halt(led)
	}
	for _, irq := range []interrupt.Interrupt{irq2, irq3, irq4} {
		irq.SetPriority(0x40)
		irq.Enable()
	}

	sched := core.NewScheduler(group, core.DefaultPlaylist(params), true)
	ctrl := core.NewController(group, sched, func(b []byte) { uart.Write(b) })
	k := newKnob(machine.PB12, machine.PB13)

	sched.Fill()
	group.Start()

	ctx := context.Background()
	var buf [64]byte
	var underruns uint32
	for {
		for uart.Buffered() > 0 {
			n, _ := uart.Read(buf[:])
			ctrl.Receive(ctx, buf[:n])
		}
		k.poll(sched)
		sched.Fill()

		// The LED toggles on every new underrun.
		var total uint32
		for _, ch := range group.Channels() {
			total += ch.Stats().Underruns
		}
		if total != underruns {
			underruns = total
			led.Set(!led.Get())
		}
		runtime.Gosched()
	}
}

// halt blinks the LED forever after a configuration failure.
func halt(led machine.Pin) {
	for {
		led.Set(!led.Get())
		for i := 0; i < 400000; i++ {
			runtime.Gosched()
		}
	}
}
