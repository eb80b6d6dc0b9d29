package core

import "context"

// Scheduler is the foreground producer. Each frame it computes one delta
// per channel from the current animation and hands it to the channel's
// queue, blocking while a queue is full.
type Scheduler struct {
	group *TimerGroup
	modes []Mode
	base  PhaseDelta

	mode   int
	frame  uint32 // frame within the current mode
	frames uint64 // frames produced since creation
	served int    // channels already fed in a frame cut short by Step

	autoAdvance bool
	modeChanges uint32
}

// NewScheduler creates a scheduler playing modes on group, starting with
// the first mode. With autoAdvance set, each mode hands over to the next
// once its frame count runs out.
func NewScheduler(group *TimerGroup, modes []Mode, autoAdvance bool) *Scheduler {
	if len(modes) == 0 {
		modes = []Mode{{Animation: Steady{}}}
	}
	return &Scheduler{group: group, modes: modes, autoAdvance: autoAdvance}
}

// SetBaseDelta sets the delta every channel advances by each frame before
// the animation adjustment.
func (s *Scheduler) SetBaseDelta(d PhaseDelta) { s.base = d }

// BaseDelta returns the base delta.
func (s *Scheduler) BaseDelta() PhaseDelta { return s.base }

// Mode returns the index of the playing mode.
func (s *Scheduler) Mode() int { return s.mode }

// ModeName returns the animation name of the playing mode.
func (s *Scheduler) ModeName() string { return s.modes[s.mode].Animation.Name() }

// Modes returns the number of modes in the playlist.
func (s *Scheduler) Modes() int { return len(s.modes) }

// Frame returns the frame index within the playing mode.
func (s *Scheduler) Frame() uint32 { return s.frame }

// Frames returns the number of frames produced.
func (s *Scheduler) Frames() uint64 { return s.frames }

// ModeChanges counts mode switches.
func (s *Scheduler) ModeChanges() uint32 { return s.modeChanges }

// SetMode switches to mode n and restarts it from frame zero.
func (s *Scheduler) SetMode(n int) error {
	if n < 0 || n >= len(s.modes) {
		return ErrUnknownMode
	}
	s.switchTo(n)
	return nil
}

func (s *Scheduler) switchTo(n int) {
	RecordTiming(EvtModeChange, 0, s.frame, uint32(s.mode), uint32(n))
	s.mode = n
	s.frame = 0
	s.modeChanges++
}

// Delta returns the delta channel id receives in the current frame.
func (s *Scheduler) Delta(id uint8) PhaseDelta {
	return s.base + PhaseDelta(s.modes[s.mode].Animation.Adjust(id, s.frame))
}

// Step produces one frame. If ctx ends mid-frame, the channels already
// served keep their delta and the next Step or Fill completes the frame
// with the remaining channels.
func (s *Scheduler) Step(ctx context.Context) error {
	chans := s.group.Channels()
	for s.served < len(chans) {
		ch := chans[s.served]
		if err := ch.Enqueue(ctx, s.Delta(ch.ID())); err != nil {
			return err
		}
		s.served++
	}
	s.advance()
	return nil
}

// Rewind drops a frame cut short by Step. Call it after the queues were
// cleared, so every channel restarts from the same frame.
func (s *Scheduler) Rewind() { s.served = 0 }

// Fill produces frames until some channel has no room left, without ever
// waiting. It returns the number of frames produced.
func (s *Scheduler) Fill() int {
	n := 0
	for s.roomForFrame() {
		for _, ch := range s.group.Channels()[s.served:] {
			ch.TryEnqueue(s.Delta(ch.ID()))
		}
		s.advance()
		n++
	}
	return n
}

func (s *Scheduler) roomForFrame() bool {
	chans := s.group.Channels()
	if len(chans) == 0 {
		return false
	}
	for _, ch := range chans {
		if ch.Full() {
			return false
		}
	}
	return true
}

func (s *Scheduler) advance() {
	s.served = 0
	s.frame++
	s.frames++
	m := s.modes[s.mode]
	if s.autoAdvance && m.Frames > 0 && s.frame >= m.Frames {
		s.switchTo((s.mode + 1) % len(s.modes))
	}
}

// Run produces frames until ctx ends, returning ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
}
