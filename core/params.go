package core

// Build-time parameters for the default board (12 channels on TIM2/3/4).
const (
	ChannelCount     = 12
	PhaseCount       = 1024
	PhaseScaleFactor = 4
	TimerCount       = PhaseCount * 32
	Brightness       = 3
	QueueCapacity    = 400
	GuardMargin      = 100

	ClockFrequency = 72000000 // Timer input clock (Hz)
	BaseFrequency  = 50       // Full master periods per second
)

// PhaseDelta is the offset, in logical phase units, of the next rising
// edge relative to the previous one.
type PhaseDelta int32

// Params gathers the build-time constants so the core never refers to them
// directly. Tests and the simulator construct their own values.
type Params struct {
	PhaseCount       uint32
	PhaseScaleFactor uint32
	TimerCount       uint32
	Brightness       uint32
	QueueCapacity    int
	GuardMargin      uint32
}

// DefaultParams returns the parameters compiled into the firmware.
func DefaultParams() Params {
	return Params{
		PhaseCount:       PhaseCount,
		PhaseScaleFactor: PhaseScaleFactor,
		TimerCount:       TimerCount,
		Brightness:       Brightness,
		QueueCapacity:    QueueCapacity,
		GuardMargin:      GuardMargin,
	}
}

// Validate checks the relationships the channel arithmetic relies on.
func (p Params) Validate() error {
	switch {
	case p.TimerCount < 2:
		return &ParamError{Field: "timer_count", Reason: "must be at least 2"}
	case p.PhaseCount == 0 || p.PhaseCount > p.TimerCount:
		return &ParamError{Field: "phase_count", Reason: "must be in [1, timer_count]"}
	case p.PhaseScaleFactor == 0:
		return &ParamError{Field: "phase_scale_factor", Reason: "must be non-zero"}
	case p.Brightness == 0 || p.Brightness >= p.TimerCount:
		return &ParamError{Field: "brightness", Reason: "must be in [1, timer_count)"}
	case p.QueueCapacity < 1:
		return &ParamError{Field: "queue_capacity", Reason: "must be positive"}
	case p.GuardMargin >= p.TimerCount:
		return &ParamError{Field: "guard_margin", Reason: "must be below timer_count"}
	}
	return nil
}

// Scale converts a logical delta into physical timer ticks.
func (p Params) Scale(d PhaseDelta) int64 {
	return int64(d) * int64(p.PhaseScaleFactor)
}

// NextPhase computes (scale(d) + last) mod TimerCount, always in [0, TimerCount).
func (p Params) NextPhase(last uint32, d PhaseDelta) uint32 {
	tc := int64(p.TimerCount)
	v := (p.Scale(d) + int64(last)) % tc
	if v < 0 {
		v += tc
	}
	return uint32(v)
}

// CatchUpPhase snaps last up to the next multiple of PhaseCount (mod
// TimerCount). A value already on a multiple is returned unchanged, so a
// missed frame repeats the last full phase.
func (p Params) CatchUpPhase(last uint32) uint32 {
	if last%p.PhaseCount == 0 {
		return last
	}
	return uint32((uint64(last/p.PhaseCount) + 1) * uint64(p.PhaseCount) % uint64(p.TimerCount))
}

// FallingEdge returns the compare value that ends a pulse started at rise.
func (p Params) FallingEdge(rise uint32) uint32 {
	return uint32((uint64(rise) + uint64(p.Brightness)) % uint64(p.TimerCount))
}

// GuardLimit is the first master count inside the guard window.
func (p Params) GuardLimit() uint32 {
	return p.TimerCount - p.GuardMargin
}

// PrescaleFor returns the division factor that makes one full master period
// last 1/baseHz seconds with the given input clock. Never returns 0.
func (p Params) PrescaleFor(clockHz, baseHz uint32) uint32 {
	if baseHz == 0 {
		return 1
	}
	f := uint64(clockHz) / (uint64(p.TimerCount) * uint64(baseHz))
	if f == 0 {
		return 1
	}
	return uint32(f)
}
