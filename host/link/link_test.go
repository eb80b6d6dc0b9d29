package link

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slink/core"
	"slink/protocol"
	"slink/targets/sim"
)

// device serves a Controller over an in-memory port. Host writes run the
// controller synchronously; its frames come back through a pipe.
type device struct {
	ctrl *core.Controller
	pr   *io.PipeReader
	pw   *io.PipeWriter

	mu   sync.Mutex
	drop int // host frames to swallow
}

func (d *device) Read(p []byte) (int, error) { return d.pr.Read(p) }

func (d *device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drop > 0 {
		d.drop--
		return len(p), nil
	}
	d.ctrl.Receive(context.Background(), p)
	return len(p), nil
}

func (d *device) Close() error {
	d.pw.Close()
	return d.pr.Close()
}

func (d *device) swallow(n int) {
	d.mu.Lock()
	d.drop = n
	d.mu.Unlock()
}

func testParams() core.Params {
	return core.Params{
		PhaseCount:       10,
		PhaseScaleFactor: 1,
		TimerCount:       100,
		Brightness:       5,
		QueueCapacity:    4,
		GuardMargin:      10,
	}
}

func newDevice(t *testing.T) *device {
	t.Helper()
	bus := sim.NewBus()
	group := core.NewTimerGroup(testParams(), bus.NewTimer("TIM2"), bus.NewTimer("TIM3"), bus.NewTimer("TIM4"))
	require.NoError(t, group.Configure(core.DefaultBindings(), 1))
	sched := core.NewScheduler(group, core.DefaultPlaylist(testParams()), false)

	pr, pw := io.Pipe()
	d := &device{pr: pr, pw: pw}
	d.ctrl = core.NewController(group, sched, func(b []byte) {
		_, _ = pw.Write(append([]byte(nil), b...))
	})
	return d
}

func connect(t *testing.T) (*Client, *device) {
	t.Helper()
	d := newDevice(t)
	c := New(d, nil)
	t.Cleanup(func() { c.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	return c, d
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestConnectFetchesDictionary(t *testing.T) {
	c, d := connect(t)
	dict := c.Dictionary()
	require.NotNil(t, dict)
	assert.Equal(t, protocol.Version, dict.Version)
	assert.Len(t, dict.Messages, d.ctrl.Registry().Count())
	assert.Greater(t, len(d.ctrl.Registry().Dictionary()), core.MaxIdentifyChunk)

	m, ok := dict.Lookup("set_prescale")
	require.True(t, ok)
	assert.Equal(t, "value=%u sync=%c", m.Format)
	assert.False(t, m.Response)

	m, ok = dict.Lookup("channel_stats")
	require.True(t, ok)
	assert.True(t, m.Response)
	assert.Equal(t, "channel_stats", dict.Name(m.ID))
}

func TestStartStopConfig(t *testing.T) {
	c, _ := connect(t)

	cfg, err := c.Config(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, DeviceConfig{
		Prescale:   1,
		Brightness: 5,
		TimerCount: 100,
		PhaseCount: 10,
		Channels:   core.ChannelCount,
	}, cfg)

	require.NoError(t, c.Start(ctx(t)))
	cfg, err = c.Config(ctx(t))
	require.NoError(t, err)
	assert.True(t, cfg.Running)

	require.NoError(t, c.Stop(ctx(t)))
	cfg, err = c.Config(ctx(t))
	require.NoError(t, err)
	assert.False(t, cfg.Running)
}

func TestSetPrescaleAndMode(t *testing.T) {
	c, _ := connect(t)

	require.NoError(t, c.SetPrescale(ctx(t), 3, true))
	frame, err := c.SetMode(ctx(t), 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), frame)

	cfg, err := c.Config(ctx(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cfg.Prescale)
	assert.Equal(t, 4, cfg.Mode)
}

func TestStats(t *testing.T) {
	c, _ := connect(t)
	st, err := c.Stats(ctx(t), 5)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), st.Channel)
	assert.Equal(t, 0, st.Queued)
	assert.Zero(t, st.Underruns)
}

func TestRemoteErrors(t *testing.T) {
	c, _ := connect(t)

	_, err := c.SetMode(ctx(t), 99)
	assert.ErrorIs(t, err, core.ErrUnknownMode)
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "set_mode", re.Command)
	assert.Equal(t, core.CodeUnknownMode, re.Code)

	_, err = c.Stats(ctx(t), 40)
	assert.ErrorIs(t, err, core.ErrUnknownChannel)

	require.NoError(t, c.EmergencyStop(ctx(t)))
	assert.ErrorIs(t, c.Start(ctx(t)), core.ErrShutdown)
	cfg, err := c.Config(ctx(t))
	require.NoError(t, err)
	assert.True(t, cfg.Shutdown)

	require.NoError(t, c.Reset(ctx(t)))
	assert.NoError(t, c.Start(ctx(t)))
}

func TestCallNeedsDictionary(t *testing.T) {
	d := newDevice(t)
	c := New(d, nil)
	defer c.Close()

	_, err := c.Call(ctx(t), "start")
	assert.ErrorIs(t, err, ErrNoDictionary)

	require.NoError(t, c.Connect(ctx(t)))
	_, err = c.Call(ctx(t), "warp")
	assert.ErrorIs(t, err, ErrUnknownName)
	_, err = c.Call(ctx(t), "config")
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestRetransmitAfterLostFrame(t *testing.T) {
	c, d := connect(t)
	c.Retransmit = 20 * time.Millisecond

	d.swallow(1)
	require.NoError(t, c.Start(ctx(t)))
	cfg, err := c.Config(ctx(t))
	require.NoError(t, err)
	assert.True(t, cfg.Running)
}

func TestGivesUpWithoutAck(t *testing.T) {
	c, d := connect(t)
	c.Retransmit = 5 * time.Millisecond
	c.Retries = 2

	d.swallow(100)
	err := c.Start(ctx(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ack")
}

func TestCallHonoursContext(t *testing.T) {
	c, d := connect(t)
	c.Retransmit = time.Second

	d.swallow(100)
	cctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := c.Start(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseIsIdempotent(t *testing.T) {
	d := newDevice(t)
	c := New(d, nil)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	_, err := c.exchange(context.Background(), []byte{identifyID})
	assert.Error(t, err)
}
