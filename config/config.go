// Package config loads board presets: timing parameters, the binding table
// and the animation playlist.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"slink/core"
)

// Timing mirrors core.Params in preset files.
type Timing struct {
	PhaseCount       uint32 `yaml:"phase_count"`
	PhaseScaleFactor uint32 `yaml:"phase_scale_factor"`
	TimerCount       uint32 `yaml:"timer_count"`
	Brightness       uint32 `yaml:"brightness"`
	QueueCapacity    int    `yaml:"queue_capacity"`
	GuardMargin      uint32 `yaml:"guard_margin"`
}

// Channel is one row of the binding table.
type Channel struct {
	Channel   uint8 `yaml:"channel"`
	Timer     uint8 `yaml:"timer"`
	Unit      uint8 `yaml:"unit"`
	Pin       uint8 `yaml:"pin"`
	ActiveLow bool  `yaml:"active_low"`
}

// PlaylistEntry selects a built-in animation mode and how long it plays.
type PlaylistEntry struct {
	Mode   int    `yaml:"mode"`
	Frames uint32 `yaml:"frames"`
}

// Preset is a complete board description.
type Preset struct {
	Name               string          `yaml:"name"`
	ClockHz            uint32          `yaml:"clock_hz"`
	BaseHz             uint32          `yaml:"base_hz"`
	Prescale           uint32          `yaml:"prescale"`
	Queue              string          `yaml:"queue"`
	OverflowOnlyUpdate *bool           `yaml:"overflow_only_update"`
	BaseDelta          int32           `yaml:"base_delta"`
	AutoAdvance        *bool           `yaml:"auto_advance"`
	Timing             Timing          `yaml:"timing"`
	Timers             []string        `yaml:"timers"`
	Channels           []Channel       `yaml:"channels"`
	Playlist           []PlaylistEntry `yaml:"playlist"`
}

// Queue kinds accepted in presets.
const (
	QueueRing   = "ring"
	QueueDouble = "double"
)

var (
	ErrUnknownQueue = errors.New("unknown queue kind")
	ErrNoTimers     = errors.New("no timers")
	ErrTooManyModes = errors.New("playlist mode out of range")
)

// Load decodes a preset. JSON is accepted as well, being valid YAML.
// Unknown keys are rejected.
func Load(data []byte) (*Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads and decodes a preset file.
func LoadFile(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Default returns the preset of the twelve-channel strobe board.
func Default() *Preset {
	p := &Preset{}
	applyDefaults(p)
	return p
}

// applyDefaults fills every zero field from the firmware constants.
func applyDefaults(p *Preset) {
	if p.Name == "" {
		p.Name = "slink"
	}
	if p.ClockHz == 0 {
		p.ClockHz = core.ClockFrequency
	}
	if p.BaseHz == 0 {
		p.BaseHz = core.BaseFrequency
	}
	if p.Queue == "" {
		p.Queue = QueueRing
	}
	if p.OverflowOnlyUpdate == nil {
		v := true
		p.OverflowOnlyUpdate = &v
	}
	if p.AutoAdvance == nil {
		v := true
		p.AutoAdvance = &v
	}

	d := core.DefaultParams()
	t := &p.Timing
	if t.PhaseCount == 0 {
		t.PhaseCount = d.PhaseCount
	}
	if t.PhaseScaleFactor == 0 {
		t.PhaseScaleFactor = d.PhaseScaleFactor
	}
	if t.TimerCount == 0 {
		t.TimerCount = d.TimerCount
	}
	if t.Brightness == 0 {
		t.Brightness = d.Brightness
	}
	if t.QueueCapacity == 0 {
		t.QueueCapacity = d.QueueCapacity
	}
	if t.GuardMargin == 0 {
		t.GuardMargin = d.GuardMargin
	}

	if len(p.Timers) == 0 {
		p.Timers = []string{"TIM2", "TIM3", "TIM4"}
	}
	if len(p.Channels) == 0 {
		for _, b := range core.DefaultBindings() {
			p.Channels = append(p.Channels, Channel{
				Channel:   b.Channel,
				Timer:     b.Timer,
				Unit:      b.Unit,
				Pin:       b.Pin,
				ActiveLow: b.ActiveLow,
			})
		}
	}
	for i := range p.Playlist {
		if p.Playlist[i].Frames == 0 {
			p.Playlist[i].Frames = 4 * t.PhaseCount
		}
	}
}

// Validate checks everything that can be checked without hardware.
func (p *Preset) Validate() error {
	if err := p.Params().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if p.Queue != QueueRing && p.Queue != QueueDouble {
		return fmt.Errorf("config: queue %q: %w", p.Queue, ErrUnknownQueue)
	}
	if len(p.Timers) == 0 {
		return fmt.Errorf("config: %w", ErrNoTimers)
	}
	var seen [core.ChannelCount]bool
	units := make(map[[2]uint8]bool)
	for _, c := range p.Channels {
		b := c.binding()
		switch {
		case int(c.Channel) >= core.ChannelCount:
			return fmt.Errorf("config: %w", &core.BindingError{Binding: b, Err: core.ErrChannelRange})
		case seen[c.Channel]:
			return fmt.Errorf("config: %w", &core.BindingError{Binding: b, Err: core.ErrDuplicateChannel})
		case int(c.Timer) >= len(p.Timers):
			return fmt.Errorf("config: %w", &core.BindingError{Binding: b, Err: core.ErrUnknownPeripheral})
		case c.Unit < 1 || c.Unit > 4:
			return fmt.Errorf("config: %w", &core.BindingError{Binding: b, Err: core.ErrUnknownUnit})
		case units[[2]uint8{c.Timer, c.Unit}]:
			return fmt.Errorf("config: %w", &core.BindingError{Binding: b, Err: core.ErrBindingConflict})
		}
		seen[c.Channel] = true
		units[[2]uint8{c.Timer, c.Unit}] = true
	}
	for _, e := range p.Playlist {
		if e.Mode < 0 || e.Mode >= core.ModeCount {
			return fmt.Errorf("config: mode %d: %w", e.Mode, ErrTooManyModes)
		}
	}
	return nil
}

func (c Channel) binding() core.Binding {
	return core.Binding{Channel: c.Channel, Timer: c.Timer, Unit: c.Unit, Pin: c.Pin, ActiveLow: c.ActiveLow}
}

// Params returns the timing parameters.
func (p *Preset) Params() core.Params {
	return core.Params{
		PhaseCount:       p.Timing.PhaseCount,
		PhaseScaleFactor: p.Timing.PhaseScaleFactor,
		TimerCount:       p.Timing.TimerCount,
		Brightness:       p.Timing.Brightness,
		QueueCapacity:    p.Timing.QueueCapacity,
		GuardMargin:      p.Timing.GuardMargin,
	}
}

// Bindings returns the binding table.
func (p *Preset) Bindings() []core.Binding {
	out := make([]core.Binding, len(p.Channels))
	for i, c := range p.Channels {
		out[i] = c.binding()
	}
	return out
}

// PrescaleFactor returns the configured prescale, derived from the clock
// and base frequency when the preset leaves it at zero.
func (p *Preset) PrescaleFactor() uint32 {
	if p.Prescale != 0 {
		return p.Prescale
	}
	return p.Params().PrescaleFor(p.ClockHz, p.BaseHz)
}

// QueueKind returns the queue variant for the channels.
func (p *Preset) QueueKind() core.QueueKind {
	if p.Queue == QueueDouble {
		return core.QueueDoubleBuffer
	}
	return core.QueueRing
}

// Options returns the peripheral options.
func (p *Preset) Options() core.Options {
	return core.Options{OverflowOnlyUpdate: *p.OverflowOnlyUpdate}
}

// Modes returns the playlist. An empty playlist plays every built-in mode
// with its default length.
func (p *Preset) Modes() []core.Mode {
	builtin := core.DefaultPlaylist(p.Params())
	if len(p.Playlist) == 0 {
		return builtin
	}
	out := make([]core.Mode, len(p.Playlist))
	for i, e := range p.Playlist {
		out[i] = core.Mode{Animation: builtin[e.Mode].Animation, Frames: e.Frames}
	}
	return out
}
