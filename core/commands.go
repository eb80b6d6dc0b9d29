package core

import (
	"context"

	"slink/protocol"
)

// MaxIdentifyChunk bounds an identify_response so it fits one frame.
const MaxIdentifyChunk = 40

// Controller serves the control link: it owns the registry of commands
// acting on a TimerGroup and its Scheduler and answers over a Transport.
// All methods run in the foreground loop.
type Controller struct {
	group *TimerGroup
	sched *Scheduler
	reg   *CommandRegistry
	tr    *protocol.Transport
	ctx   context.Context

	shutdown bool
	errors   uint32
	out      []byte

	idIdentifyResponse uint16
	idError            uint16
	idConfig           uint16
	idStats            uint16
	idMode             uint16
}

// NewController registers every command and returns a controller writing
// its frames to write.
func NewController(group *TimerGroup, sched *Scheduler, write func([]byte)) *Controller {
	c := &Controller{
		group: group,
		sched: sched,
		reg:   NewCommandRegistry(),
		ctx:   context.Background(),
		out:   make([]byte, 0, protocol.MaxPayload),
	}
	c.tr = protocol.NewTransport(c.handle, write)
	c.tr.SetErrorCallback(c.reportError)

	// identify must stay at ids 0 and 1: the host asks for the dictionary
	// before it knows any other id.
	c.idIdentifyResponse = c.reg.RegisterResponse("identify_response", "offset=%u data=%*s")
	c.reg.Register("identify", "offset=%u count=%c", c.handleIdentify)

	c.idError = c.reg.RegisterResponse("error", "code=%c cmd=%u")
	c.reg.Register("get_config", "", c.handleGetConfig)
	c.idConfig = c.reg.RegisterResponse("config",
		"prescale=%u brightness=%u timer_count=%u phase_count=%u running=%c channels=%c mode=%c shutdown=%c")
	c.reg.Register("start", "", c.handleStart)
	c.reg.Register("stop", "", c.handleStop)
	c.reg.Register("reset", "", c.handleReset)
	c.reg.Register("emergency_stop", "", c.handleEmergencyStop)
	c.reg.Register("set_prescale", "value=%u sync=%c", c.handleSetPrescale)
	c.reg.Register("set_mode", "mode=%c", c.handleSetMode)
	c.idMode = c.reg.RegisterResponse("mode", "mode=%c frames=%u")
	c.reg.Register("get_stats", "channel=%c", c.handleGetStats)
	c.idStats = c.reg.RegisterResponse("channel_stats",
		"channel=%c state=%c last_phase=%u underruns=%u stalls=%u edges=%u queued=%u")
	return c
}

// Registry exposes the command registry.
func (c *Controller) Registry() *CommandRegistry { return c.reg }

// Shutdown reports whether an emergency stop latched.
func (c *Controller) Shutdown() bool { return c.shutdown }

// Errors counts failed commands.
func (c *Controller) Errors() uint32 { return c.errors }

// Receive feeds bytes from the link. Blocking commands honour ctx.
func (c *Controller) Receive(ctx context.Context, p []byte) int {
	c.ctx = ctx
	defer func() { c.ctx = context.Background() }()
	return c.tr.Receive(p)
}

func (c *Controller) handle(id uint32, r *protocol.Reader) error {
	if id > 0xFFFF {
		return ErrUnknownCommand
	}
	return c.reg.Dispatch(uint16(id), r)
}

func (c *Controller) reportError(id uint32, err error) {
	c.errors++
	c.respond(c.idError, uint32(CodeOf(err)), id)
}

func (c *Controller) respond(id uint16, args ...uint32) {
	c.out = protocol.AppendUint(c.out[:0], uint32(id))
	for _, a := range args {
		c.out = protocol.AppendUint(c.out, a)
	}
	_ = c.tr.Send(c.out)
}

func (c *Controller) handleIdentify(r *protocol.Reader) error {
	offset := r.Uint()
	count := r.Uint()
	if err := r.Err(); err != nil {
		return err
	}
	if count > MaxIdentifyChunk {
		count = MaxIdentifyChunk
	}
	chunk := c.reg.Chunk(offset, count)
	c.out = protocol.AppendUint(c.out[:0], uint32(c.idIdentifyResponse))
	c.out = protocol.AppendUint(c.out, offset)
	c.out = protocol.AppendBytes(c.out, chunk)
	return c.tr.Send(c.out)
}

func (c *Controller) handleGetConfig(*protocol.Reader) error {
	p := c.group.Params()
	c.respond(c.idConfig,
		c.group.Prescale(),
		p.Brightness,
		p.TimerCount,
		p.PhaseCount,
		boolArg(c.group.Running()),
		uint32(len(c.group.Channels())),
		uint32(c.sched.Mode()),
		boolArg(c.shutdown))
	return nil
}

func (c *Controller) handleStart(*protocol.Reader) error {
	if c.shutdown {
		return ErrShutdown
	}
	return c.group.Start()
}

func (c *Controller) handleStop(*protocol.Reader) error {
	if !c.group.configured {
		return ErrNotConfigured
	}
	c.group.Stop()
	return nil
}

func (c *Controller) handleReset(*protocol.Reader) error {
	c.shutdown = false
	c.sched.Rewind()
	return c.group.Reset()
}

// handleEmergencyStop stops the group with every output forced inactive and
// refuses start until the next reset.
func (c *Controller) handleEmergencyStop(*protocol.Reader) error {
	c.shutdown = true
	if !c.group.configured {
		return nil
	}
	c.group.Stop()
	c.sched.Rewind()
	return c.group.Reset()
}

func (c *Controller) handleSetPrescale(r *protocol.Reader) error {
	value := r.Uint()
	sync := r.Bool()
	if err := r.Err(); err != nil {
		return err
	}
	return c.group.ReconfigurePrescale(c.ctx, value, sync)
}

func (c *Controller) handleSetMode(r *protocol.Reader) error {
	mode := r.Uint()
	if err := r.Err(); err != nil {
		return err
	}
	if err := c.sched.SetMode(int(mode)); err != nil {
		return err
	}
	c.respond(c.idMode, mode, c.sched.Frame())
	return nil
}

func (c *Controller) handleGetStats(r *protocol.Reader) error {
	id := r.Uint()
	if err := r.Err(); err != nil {
		return err
	}
	if id > 0xFF {
		return ErrUnknownChannel
	}
	ch, err := c.group.Channel(uint8(id))
	if err != nil {
		return err
	}
	st := ch.Stats()
	c.respond(c.idStats,
		uint32(st.Channel),
		uint32(st.State),
		st.LastPhase,
		st.Underruns,
		st.Stalls,
		st.Edges,
		uint32(st.Queued))
	return nil
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
