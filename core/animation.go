package core

import "math"

// Animation supplies the per-frame adjustment added to the base delta of
// each channel. An adjustment is a velocity: it shifts the channel's rising
// edge relative to where the base delta alone would put it.
//
// Animations run in the foreground and must be pure functions of their
// arguments, so a mode can be restarted at any frame.
type Animation interface {
	Name() string
	Adjust(channel uint8, frame uint32) int32
}

// Mode is one playlist entry.
type Mode struct {
	Animation Animation
	Frames    uint32 // 0 plays forever
}

// Steady holds every channel at the base delta.
type Steady struct{}

func (Steady) Name() string                { return "steady" }
func (Steady) Adjust(uint8, uint32) int32 { return 0 }

// Spin moves every channel by the same amount each frame.
type Spin struct {
	Speed int32
}

func (s Spin) Name() string                { return "spin" }
func (s Spin) Adjust(uint8, uint32) int32 { return s.Speed }

// Chase gives each channel a speed proportional to its distance from
// Center, so neighbouring outputs drift apart and back together.
type Chase struct {
	Step   int32
	Center uint8
}

func (c Chase) Name() string { return "chase" }

func (c Chase) Adjust(channel uint8, _ uint32) int32 {
	return (int32(channel) - int32(c.Center)) * c.Step
}

// SineSteps and SineAmplitude describe the default wobble table.
const (
	SineSteps     = 200
	SineAmplitude = 400
)

// Wobble moves each channel along a half-sine path, one table step per
// frame, with channels offset from one another by Spread steps.
type Wobble struct {
	Table  []int32
	Spread uint32
}

// NewWobble builds a wobble over a half-sine table of the given size.
func NewWobble(steps int, amplitude int32, spread uint32) Wobble {
	return Wobble{Table: SineTable(steps, amplitude), Spread: spread}
}

// SineTable samples sin(x) over [0, pi) in steps points scaled by amplitude.
func SineTable(steps int, amplitude int32) []int32 {
	if steps <= 0 {
		return nil
	}
	rad := math.Pi / float64(steps)
	tab := make([]int32, steps)
	for x := range tab {
		tab[x] = int32(math.Sin(float64(x)*rad) * float64(amplitude))
	}
	return tab
}

func (w Wobble) Name() string { return "wobble" }

// Adjust returns the difference between consecutive table positions, so the
// accumulated phase follows the table itself.
func (w Wobble) Adjust(channel uint8, frame uint32) int32 {
	n := uint32(len(w.Table))
	if n == 0 {
		return 0
	}
	i := (frame + uint32(channel)*w.Spread) % n
	return w.Table[(i+1)%n] - w.Table[i]
}

// Fade runs at Start for Hold frames, then moves its speed by Step every
// Every frames until it reaches End. Step must divide End-Start evenly in
// sign and size, or the speed stops at the last step short of End.
type Fade struct {
	Every int32
	End   int32
	Step  int32
	Hold  uint32
	Start int32
}

func (f Fade) Name() string { return "fade" }

func (f Fade) Adjust(_ uint8, frame uint32) int32 {
	if frame <= 1 {
		return 0
	}
	if frame < f.Hold || f.Step == 0 || f.Every <= 0 {
		return f.Start
	}
	steps := int64(frame-f.Hold+1) / int64(f.Every)
	limit := int64(f.End-f.Start) / int64(f.Step)
	if limit < 0 {
		limit = 0
	}
	if steps > limit {
		steps = limit
	}
	return f.Start + int32(steps)*f.Step
}

// ModeCount is the number of entries in the default playlist.
const ModeCount = 12

// DefaultPlaylist returns the animation modes selectable by number.
func DefaultPlaylist(params Params) []Mode {
	pc := int32(params.PhaseCount)
	return []Mode{
		{Animation: Steady{}, Frames: 400},
		{Animation: Spin{Speed: 1}, Frames: 800},
		{Animation: Spin{Speed: -1}, Frames: 800},
		{Animation: Spin{Speed: 4}, Frames: 400},
		{Animation: Fade{Every: 40, End: 0, Step: -1, Hold: 50, Start: 20}, Frames: 4 * params.PhaseCount},
		{Animation: Fade{Every: 20, End: 20, Step: 1, Hold: 50, Start: 0}, Frames: 2 * params.PhaseCount},
		{Animation: NewWobble(SineSteps, SineAmplitude, 0), Frames: 2 * SineSteps},
		{Animation: NewWobble(SineSteps, SineAmplitude, SineSteps/ChannelCount), Frames: 2 * SineSteps},
		{Animation: NewWobble(SineSteps, -SineAmplitude, SineSteps/4), Frames: 2 * SineSteps},
		{Animation: Chase{Step: 1, Center: ChannelCount / 2}, Frames: 600},
		{Animation: Chase{Step: -2, Center: 0}, Frames: 600},
		{Animation: Spin{Speed: pc / 64}, Frames: 200},
	}
}
