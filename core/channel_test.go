package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUnit records what the channel programs into a compare unit.
type fakeUnit struct {
	active   bool
	compare  uint32
	writes   int
	handler  func()
	inverted bool
	released bool
}

func (u *fakeUnit) SetOutputActive()      { u.active = true; u.writes++ }
func (u *fakeUnit) SetOutputInactive()    { u.active = false; u.writes++ }
func (u *fakeUnit) SetCompare(v uint32)   { u.compare = v; u.writes++ }
func (u *fakeUnit) InitOutput(inv bool)   { u.inverted = inv; u.active = false; u.compare = 0 }
func (u *fakeUnit) Attach(handler func()) { u.handler = handler }
func (u *fakeUnit) Release()              { u.handler = nil; u.active = false; u.released = true }

func testParams() Params {
	return Params{
		PhaseCount:       10,
		PhaseScaleFactor: 1,
		TimerCount:       100,
		Brightness:       5,
		QueueCapacity:    8,
		GuardMargin:      10,
	}
}

func newTestChannel(t *testing.T, kind QueueKind) (*Channel, *fakeUnit) {
	t.Helper()
	ch := NewChannel(3, testParams(), kind)
	u := &fakeUnit{}
	ch.bind(Binding{Channel: 3, Unit: 1, ActiveLow: true}, u)
	require.NotNil(t, u.handler)
	assert.True(t, u.inverted)
	return ch, u
}

func TestChannelStateMachine(t *testing.T) {
	ch, u := newTestChannel(t, QueueRing)
	require.True(t, ch.TryEnqueue(7))

	u.handler() // OFF -> ON
	assert.Equal(t, StateOn, ch.State())
	assert.True(t, u.active, "next match drives the pin active")
	assert.Equal(t, uint32(7), u.compare)
	assert.Equal(t, uint32(7), ch.LastPhase())

	u.handler() // ON -> OFF
	assert.Equal(t, StateOff, ch.State())
	assert.False(t, u.active)
	assert.Equal(t, uint32(12), u.compare, "falling edge is rise + brightness")
	assert.Equal(t, uint32(7), ch.LastPhase(), "falling edge leaves the rising phase alone")
}

func TestChannelUnbindReleasesUnit(t *testing.T) {
	ch, u := newTestChannel(t, QueueRing)
	require.True(t, ch.TryEnqueue(2))
	u.handler()
	require.Equal(t, StateOn, ch.State())

	ch.unbind()
	assert.True(t, u.released)
	assert.Nil(t, u.handler)
	assert.False(t, u.active)
	assert.Equal(t, StateOff, ch.State())
	assert.Zero(t, ch.Queued())
	ch.unbind() // second call is a no-op
}

func TestChannelBoundedWork(t *testing.T) {
	ch, u := newTestChannel(t, QueueDoubleBuffer)
	ch.TryEnqueue(1)
	u.writes = 0
	u.handler()
	assert.Equal(t, 2, u.writes)
	u.writes = 0
	u.handler()
	assert.Equal(t, 2, u.writes)
}

func TestChannelRisingEdgesDoNotDrift(t *testing.T) {
	for _, kind := range []QueueKind{QueueRing, QueueDoubleBuffer} {
		ch, u := newTestChannel(t, kind)
		want := uint32(0)
		for i := 0; i < 50; i++ {
			d := PhaseDelta(i%7 - 3)
			require.True(t, ch.TryEnqueue(d))
			want = testParams().NextPhase(want, d)

			u.handler()
			assert.Equal(t, want, u.compare)
			u.handler()
			assert.Equal(t, (want+5)%100, u.compare)
		}
		assert.Equal(t, uint32(0), ch.Stats().Underruns)
	}
}

func TestChannelUnderrunCatchUp(t *testing.T) {
	ch, u := newTestChannel(t, QueueRing)
	require.True(t, ch.TryEnqueue(13))
	u.handler()
	u.handler()
	require.Equal(t, uint32(13), ch.LastPhase())

	u.handler() // queue empty: snap to the next phase boundary
	assert.Equal(t, uint32(20), u.compare)
	assert.Equal(t, uint32(20), ch.LastPhase())
	assert.Equal(t, uint32(1), ch.Stats().Underruns)

	u.handler()
	u.handler() // already on a boundary: repeat it
	assert.Equal(t, uint32(20), u.compare)
	assert.Equal(t, uint32(2), ch.Stats().Underruns)
}

func TestChannelEnqueueStallsThenCancels(t *testing.T) {
	ch, _ := newTestChannel(t, QueueRing)
	for ch.TryEnqueue(1) {
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ch.Enqueue(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
	st := ch.Stats()
	assert.Equal(t, uint32(1), st.Stalls)
	assert.Equal(t, 8, st.Queued)
}

func TestChannelClear(t *testing.T) {
	ch, u := newTestChannel(t, QueueRing)
	ch.TryEnqueue(4)
	ch.TryEnqueue(4)
	u.handler()
	ch.clear()
	assert.Equal(t, StateOff, ch.State())
	assert.Equal(t, uint32(0), ch.LastPhase())
	assert.Equal(t, 0, ch.Queued())
	assert.False(t, u.active)
	assert.Equal(t, uint32(0), u.compare)
}
