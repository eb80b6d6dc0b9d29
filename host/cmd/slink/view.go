package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli"

	"slink/targets/sim"
)

const (
	viewFrameTime = time.Second / 30
	labelWidth    = 6
	statsWidth    = 24
)

func viewCommand() cli.Command {
	return cli.Command{
		Name:  "view",
		Usage: "animate a preset on simulated timers in the terminal",
		Description: "Each screen frame runs one master period. Without --prescale the " +
			"view runs at prescale 1 so the simulation keeps up.",
		Flags:  presetFlags,
		Action: runView,
	}
}

func runView(c *cli.Context) error {
	p, err := loadPreset(c)
	if err != nil {
		return err
	}
	if c.Int("prescale") == 0 {
		p.Prescale = 1
	}
	board, err := sim.NewBoard(p)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	defer screen.Fini()

	v := newViewer(screen, board)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tick := time.NewTicker(viewFrameTime)
	defer tick.Stop()
	for v.running {
		for screen.HasPendingEvent() {
			v.handle(ctx, screen.PollEvent())
		}
		if err := v.step(ctx); err != nil {
			return err
		}
		v.draw()
		screen.Show()
		<-tick.C
	}
	return nil
}

// viewer draws one row per channel: the rising edges of the last period
// along the master counter, followed by the channel's counters.
type viewer struct {
	screen tcell.Screen
	board  *sim.Board

	running bool
	paused  bool
	status  string
	periods uint64
}

func newViewer(screen tcell.Screen, board *sim.Board) *viewer {
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	return &viewer{screen: screen, board: board, running: true}
}

func (v *viewer) step(ctx context.Context) error {
	if v.paused {
		return nil
	}
	for _, ch := range v.board.Group.Channels() {
		v.board.Unit(ch.ID()).ClearEdges()
	}
	if err := v.board.RunPeriods(ctx, 1); err != nil {
		return err
	}
	v.periods++
	return nil
}

func (v *viewer) handle(ctx context.Context, ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
			v.running = false
		case ev.Rune() == ' ':
			v.paused = !v.paused
		case ev.Rune() == 'n':
			v.setMode(v.board.Sched.Mode() + 1)
		case ev.Rune() == 'p':
			v.setMode(v.board.Sched.Mode() - 1)
		case ev.Rune() == 'r':
			v.report("reset", v.board.Group.Reset())
		case ev.Rune() == '+':
			v.setPrescale(ctx, v.board.Group.Prescale()+1)
		case ev.Rune() == '-':
			v.setPrescale(ctx, v.board.Group.Prescale()-1)
		}
	}
}

func (v *viewer) setMode(n int) {
	modes := v.board.Sched.Modes()
	n = (n%modes + modes) % modes
	v.report("mode", v.board.Sched.SetMode(n))
}

func (v *viewer) setPrescale(ctx context.Context, factor uint32) {
	if factor == 0 {
		return
	}
	v.report("prescale", v.board.Group.ReconfigurePrescale(ctx, factor, true))
}

func (v *viewer) report(what string, err error) {
	if err != nil {
		v.status = what + ": " + err.Error()
		slog.Debug("view command failed", "command", what, "error", err)
		return
	}
	v.status = what + " ok"
}

func (v *viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	g := v.board.Group
	s := v.board.Sched

	state := "running"
	if v.paused {
		state = "paused"
	}
	v.text(0, 0, tcell.StyleDefault.Bold(true), fmt.Sprintf("%s  %s  mode %d %s  frame %d  prescale %d  period %d",
		v.board.Preset.Name, state, s.Mode(), s.ModeName(), s.Frame(), g.Prescale(), v.periods))

	strip := w - labelWidth - statsWidth
	if strip < 8 {
		strip = 8
	}
	tc := uint64(g.Params().TimerCount)
	for row, ch := range g.Channels() {
		y := row + 2
		if y >= h-2 {
			break
		}
		st := ch.Stats()
		v.text(0, y, tcell.StyleDefault, fmt.Sprintf("ch%02d", st.Channel))
		for x := 0; x < strip; x++ {
			v.screen.SetContent(labelWidth+x, y, '·', nil, tcell.StyleDefault.Foreground(tcell.ColorGray))
		}
		for _, e := range v.board.Unit(ch.ID()).Edges() {
			if !e.Active {
				continue
			}
			x := int(uint64(e.Count) * uint64(strip) / tc)
			v.screen.SetContent(labelWidth+x, y, '█', nil, tcell.StyleDefault.Foreground(tcell.ColorYellow))
		}
		style := tcell.StyleDefault
		if st.Underruns > 0 {
			style = style.Foreground(tcell.ColorRed)
		}
		v.text(labelWidth+strip+1, y, style, fmt.Sprintf("e%-6d u%-4d q%d", st.Edges, st.Underruns, st.Queued))
	}

	v.text(0, h-2, tcell.StyleDefault, v.status)
	v.text(0, h-1, tcell.StyleDefault.Foreground(tcell.ColorGray),
		"q quit  space pause  n/p mode  r reset  +/- prescale")
}

func (v *viewer) text(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
