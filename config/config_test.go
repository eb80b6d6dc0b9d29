package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slink/core"
)

func TestDefaultPreset(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, core.DefaultParams(), p.Params())
	assert.Equal(t, core.DefaultBindings(), p.Bindings())
	assert.Equal(t, uint32(43), p.PrescaleFactor())
	assert.Equal(t, core.QueueRing, p.QueueKind())
	assert.True(t, p.Options().OverflowOnlyUpdate)
	assert.Len(t, p.Modes(), core.ModeCount)
}

func TestLoadYAML(t *testing.T) {
	p, err := Load([]byte(`
name: bench
prescale: 8
queue: double
overflow_only_update: false
base_delta: 2
timing:
  timer_count: 4096
  brightness: 5
timers: [TIM2, TIM3]
channels:
  - {channel: 0, timer: 0, unit: 1, pin: 0}
  - {channel: 1, timer: 1, unit: 1, pin: 6, active_low: true}
playlist:
  - {mode: 4}
  - {mode: 6, frames: 400}
`))
	require.NoError(t, err)
	assert.Equal(t, "bench", p.Name)
	assert.Equal(t, uint32(8), p.PrescaleFactor())
	assert.Equal(t, core.QueueDoubleBuffer, p.QueueKind())
	assert.False(t, p.Options().OverflowOnlyUpdate)
	assert.Equal(t, int32(2), p.BaseDelta)
	assert.Equal(t, uint32(4096), p.Params().TimerCount)
	assert.Equal(t, uint32(core.PhaseCount), p.Params().PhaseCount, "defaulted")
	assert.True(t, p.Bindings()[1].ActiveLow)

	modes := p.Modes()
	require.Len(t, modes, 2)
	assert.Equal(t, "fade", modes[0].Animation.Name())
	assert.Equal(t, 4*uint32(core.PhaseCount), modes[0].Frames)
	assert.Equal(t, uint32(400), modes[1].Frames)
}

func TestLoadJSON(t *testing.T) {
	p, err := Load([]byte(`{"name": "json", "base_hz": 80, "timing": {"brightness": 8}}`))
	require.NoError(t, err)
	assert.Equal(t, uint32(80), p.BaseHz)
	assert.Equal(t, uint32(8), p.Params().Brightness)
	assert.Equal(t, uint32(27), p.PrescaleFactor())
}

func TestLoadEmpty(t *testing.T) {
	p, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unit conflict", "channels: [{channel: 0, unit: 1}, {channel: 1, unit: 1}]", core.ErrBindingConflict},
		{"duplicate channel", "channels: [{channel: 0, unit: 1}, {channel: 0, unit: 2}]", core.ErrDuplicateChannel},
		{"unknown timer", "timers: [TIM2]\nchannels: [{channel: 0, timer: 1, unit: 1}]", core.ErrUnknownPeripheral},
		{"bad unit", "channels: [{channel: 0, unit: 7}]", core.ErrUnknownUnit},
		{"channel range", "channels: [{channel: 40, unit: 1}]", core.ErrChannelRange},
		{"queue", "queue: lifo", ErrUnknownQueue},
		{"params", "timing: {timer_count: 100, phase_count: 200}", core.ErrInvalidParams},
		{"mode", "playlist: [{mode: 99}]", ErrTooManyModes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Load([]byte("bogus_key: 1"))
	assert.Error(t, err, "unknown keys rejected")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\n"), 0o644))
	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file", p.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
