package core

// Board pin numbers on STM32 parts: port*16 + pin.
const (
	pinPA0 = 0
	pinPA1 = 1
	pinPA2 = 2
	pinPA3 = 3
	pinPA6 = 6
	pinPA7 = 7
	pinPB0 = 16
	pinPB1 = 17
	pinPB6 = 22
	pinPB7 = 23
	pinPB8 = 24
	pinPB9 = 25
)

// DefaultBindings returns the twelve-channel table of the strobe board:
// master TIM2 CH1..4 on PA0..PA3, slave TIM3 CH1..4 on PA6, PA7, PB0, PB1
// and slave TIM4 CH1..4 on PB6..PB9.
func DefaultBindings() []Binding {
	pins := [ChannelCount]uint8{
		pinPA0, pinPA1, pinPA2, pinPA3,
		pinPA6, pinPA7, pinPB0, pinPB1,
		pinPB6, pinPB7, pinPB8, pinPB9,
	}
	out := make([]Binding, ChannelCount)
	for i := range out {
		out[i] = Binding{
			Channel: uint8(i),
			Timer:   uint8(i / 4),
			Unit:    uint8(i%4 + 1),
			Pin:     pins[i],
		}
	}
	return out
}
