package link

import (
	"context"

	"slink/core"
)

// DeviceConfig is the device's answer to get_config.
type DeviceConfig struct {
	Prescale   uint32
	Brightness uint32
	TimerCount uint32
	PhaseCount uint32
	Running    bool
	Channels   uint8
	Mode       int
	Shutdown   bool
}

// Start starts the timer group.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.Call(ctx, "start")
	return err
}

// Stop halts the timer group with every output inactive.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.Call(ctx, "stop")
	return err
}

// Reset restores the group's power-on state and clears a latched
// emergency stop.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.Call(ctx, "reset")
	return err
}

// EmergencyStop stops the group and refuses Start until Reset.
func (c *Client) EmergencyStop(ctx context.Context) error {
	_, err := c.Call(ctx, "emergency_stop")
	return err
}

// SetPrescale changes the group's prescale factor. With sync the device
// waits for the counter to leave the guard window first.
func (c *Client) SetPrescale(ctx context.Context, value uint32, sync bool) error {
	var s uint32
	if sync {
		s = 1
	}
	_, err := c.Call(ctx, "set_prescale", value, s)
	return err
}

// SetMode selects animation mode n and returns the frame it restarted at.
func (c *Client) SetMode(ctx context.Context, n int) (uint32, error) {
	r, err := c.Expect(ctx, "mode", "set_mode", uint32(n))
	if err != nil {
		return 0, err
	}
	r.Uint()
	frame := r.Uint()
	return frame, r.Err()
}

// Config fetches the device's running configuration.
func (c *Client) Config(ctx context.Context) (DeviceConfig, error) {
	r, err := c.Expect(ctx, "config", "get_config")
	if err != nil {
		return DeviceConfig{}, err
	}
	cfg := DeviceConfig{
		Prescale:   r.Uint(),
		Brightness: r.Uint(),
		TimerCount: r.Uint(),
		PhaseCount: r.Uint(),
		Running:    r.Bool(),
		Channels:   uint8(r.Uint()),
		Mode:       int(r.Uint()),
		Shutdown:   r.Bool(),
	}
	return cfg, r.Err()
}

// Stats fetches the counters of one channel.
func (c *Client) Stats(ctx context.Context, channel uint8) (core.ChannelStats, error) {
	r, err := c.Expect(ctx, "channel_stats", "get_stats", uint32(channel))
	if err != nil {
		return core.ChannelStats{}, err
	}
	st := core.ChannelStats{
		Channel:   uint8(r.Uint()),
		State:     core.ChannelState(r.Uint()),
		LastPhase: r.Uint(),
		Underruns: r.Uint(),
		Stalls:    r.Uint(),
		Edges:     r.Uint(),
		Queued:    int(r.Uint()),
	}
	return st, r.Err()
}
