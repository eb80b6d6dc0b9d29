package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slink/core"
)

func configuredRig(t *testing.T, channels int) *rig {
	t.Helper()
	r := newRig(t, smallParams(), 2)
	bindings := core.DefaultBindings()[:channels]
	require.NoError(t, r.group.Configure(bindings, 1))
	return r
}

func TestSchedulerStepFeedsEveryChannel(t *testing.T) {
	r := configuredRig(t, 6)
	s := core.NewScheduler(r.group, []core.Mode{{Animation: core.Chase{Step: 1}}}, false)
	s.SetBaseDelta(2)

	require.NoError(t, s.Step(context.Background()))
	for _, ch := range r.group.Channels() {
		assert.Equal(t, 1, ch.Queued())
	}
	assert.Equal(t, uint64(1), s.Frames())
	assert.Equal(t, core.PhaseDelta(2+5), s.Delta(5))
}

func TestSchedulerFillStopsAtCapacity(t *testing.T) {
	r := configuredRig(t, 4)
	s := core.NewScheduler(r.group, nil, false)
	n := s.Fill()
	assert.Equal(t, smallParams().QueueCapacity, n)
	for _, ch := range r.group.Channels() {
		assert.True(t, ch.Full())
	}
	assert.Zero(t, s.Fill())
}

func TestSchedulerStepBlocksUntilCancelled(t *testing.T) {
	r := configuredRig(t, 2)
	s := core.NewScheduler(r.group, nil, false)
	s.Fill()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Step(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint32(1), r.group.Channels()[0].Stats().Stalls)
}

func TestSchedulerResumesCutShortFrame(t *testing.T) {
	r := configuredRig(t, 2)
	s := core.NewScheduler(r.group, nil, false)
	first, second := r.group.Channels()[0], r.group.Channels()[1]
	for !second.Full() {
		second.TryEnqueue(3)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Step(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, first.Queued())
	assert.Zero(t, s.Frames())

	require.NoError(t, r.group.Start())
	require.True(t, r.bus.RunUntil(func() bool { return !second.Full() }, 10000))
	queued := first.Queued()

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, queued, first.Queued(), "served channel is not fed twice")
	assert.True(t, second.Full())
	assert.Equal(t, uint64(1), s.Frames())
}

func TestSchedulerRewindAfterReset(t *testing.T) {
	r := configuredRig(t, 2)
	s := core.NewScheduler(r.group, nil, false)
	for !r.group.Channels()[1].Full() {
		r.group.Channels()[1].TryEnqueue(3)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, s.Step(ctx))

	require.NoError(t, r.group.Reset())
	s.Rewind()
	require.NoError(t, s.Step(context.Background()))
	for _, ch := range r.group.Channels() {
		assert.Equal(t, 1, ch.Queued(), "channel %d", ch.ID())
	}
}

func TestSchedulerPlaylistAdvances(t *testing.T) {
	r := configuredRig(t, 1)
	modes := []core.Mode{
		{Animation: core.Steady{}, Frames: 2},
		{Animation: core.Spin{Speed: 3}, Frames: 3},
	}
	s := core.NewScheduler(r.group, modes, true)
	ch := r.group.Channels()[0]
	var got []core.PhaseDelta
	for i := 0; i < 7; i++ {
		if ch.Full() {
			require.NoError(t, r.group.Reset())
		}
		got = append(got, s.Delta(0))
		require.NoError(t, s.Step(context.Background()))
	}
	assert.Equal(t, []core.PhaseDelta{0, 0, 3, 3, 3, 0, 0}, got)
	assert.Equal(t, 1, s.Mode())
}

func TestSchedulerSetMode(t *testing.T) {
	r := configuredRig(t, 1)
	s := core.NewScheduler(r.group, core.DefaultPlaylist(smallParams()), false)
	require.NoError(t, s.SetMode(4))
	assert.Equal(t, "fade", s.ModeName())
	assert.Zero(t, s.Frame())
	assert.ErrorIs(t, s.SetMode(core.ModeCount), core.ErrUnknownMode)
	assert.ErrorIs(t, s.SetMode(-1), core.ErrUnknownMode)

	var seen bool
	for _, e := range core.TimingEvents() {
		if e.Event == core.EvtModeChange && e.B == 4 {
			seen = true
		}
	}
	assert.True(t, seen)
}

func TestSchedulerAgainstSimulator(t *testing.T) {
	r := configuredRig(t, 12)
	s := core.NewScheduler(r.group, []core.Mode{{Animation: core.Spin{Speed: 1}}}, false)
	require.NoError(t, r.group.Start())

	for i := 0; i < 50; i++ {
		s.Fill()
		r.bus.Advance(100)
	}
	for _, st := range r.group.Stats() {
		assert.Zero(t, st.Underruns, "channel %d", st.Channel)
		assert.NotZero(t, st.Edges, "channel %d", st.Channel)
	}
	assert.Zero(t, r.bus.DesyncCycles())
}
