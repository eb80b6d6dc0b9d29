package main

import (
	"context"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slink/config"
	"slink/targets/sim"
)

func testViewer(t *testing.T) *viewer {
	t.Helper()
	screen := tcell.NewSimulationScreen("")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(80, 20)

	p := config.Default()
	p.Prescale = 1
	p.Timing.TimerCount = 320
	p.Timing.PhaseCount = 10
	p.Timing.GuardMargin = 10
	p.Timing.QueueCapacity = 8
	p.Playlist = []config.PlaylistEntry{{Mode: 0}, {Mode: 2}}
	board, err := sim.NewBoard(p)
	require.NoError(t, err)
	return newViewer(screen, board)
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestViewerDrawsRisingEdges(t *testing.T) {
	v := testViewer(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, v.step(context.Background()))
	}
	v.draw()

	r, _, _, _ := v.screen.GetContent(0, 2)
	assert.Equal(t, 'c', r)
	r, _, _, _ = v.screen.GetContent(labelWidth, 2)
	assert.Equal(t, '█', r)
	r, _, _, _ = v.screen.GetContent(labelWidth+10, 2)
	assert.Equal(t, '·', r)
	assert.Equal(t, uint64(3), v.periods)
}

func TestViewerKeys(t *testing.T) {
	v := testViewer(t)
	ctx := context.Background()
	require.NoError(t, v.step(ctx))

	v.handle(ctx, key(' '))
	require.NoError(t, v.step(ctx))
	assert.Equal(t, uint64(1), v.periods)
	v.handle(ctx, key(' '))

	v.handle(ctx, key('n'))
	assert.Equal(t, 1, v.board.Sched.Mode())
	v.handle(ctx, key('n'))
	assert.Equal(t, 0, v.board.Sched.Mode())
	v.handle(ctx, key('p'))
	assert.Equal(t, 1, v.board.Sched.Mode())

	v.handle(ctx, key('+'))
	assert.Equal(t, uint32(2), v.board.Group.Prescale())
	assert.Equal(t, "prescale ok", v.status)
	v.handle(ctx, key('-'))
	v.handle(ctx, key('-'))
	assert.Equal(t, uint32(1), v.board.Group.Prescale())

	v.handle(ctx, key('r'))
	assert.Equal(t, "reset ok", v.status)

	v.handle(ctx, key('q'))
	assert.False(t, v.running)
}
