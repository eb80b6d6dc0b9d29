package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli"

	"slink/core"
	"slink/targets/sim"
)

func simulateCommand() cli.Command {
	return cli.Command{
		Name:  "simulate",
		Usage: "run a preset on simulated timers and report channel statistics",
		Flags: append([]cli.Flag{
			cli.IntFlag{
				Name:  "periods",
				Usage: "Master periods to run",
				Value: 50,
			},
			cli.IntFlag{
				Name:  "mode",
				Usage: "Animation mode to start in",
			},
			cli.BoolFlag{
				Name:  "timing",
				Usage: "Dump the timing event ring at the end",
			},
		}, presetFlags...),
		Action: runSimulate,
	}
}

func runSimulate(c *cli.Context) error {
	p, err := loadPreset(c)
	if err != nil {
		return err
	}
	board, err := sim.NewBoard(p)
	if err != nil {
		return err
	}
	if err := board.Sched.SetMode(c.Int("mode")); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	core.ClearTimingRing()
	periods := c.Int("periods")
	slog.Info("simulating",
		"preset", p.Name,
		"periods", periods,
		"prescale", board.Group.Prescale(),
		"cycles_per_period", board.Period(),
		"mode", board.Sched.ModeName())

	start := time.Now()
	if err := board.RunPeriods(ctx, periods); err != nil {
		return err
	}
	board.Group.Stop()

	slog.Info("done",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"clock", board.Bus.Clock(),
		"updates", board.Bus.Updates(),
		"desync_cycles", board.Bus.DesyncCycles(),
		"frames", board.Sched.Frames(),
		"mode", board.Sched.ModeName(),
		"mode_changes", board.Sched.ModeChanges())
	for _, st := range board.Group.Stats() {
		slog.Info("channel",
			"id", st.Channel,
			"state", st.State,
			"last_phase", st.LastPhase,
			"edges", st.Edges,
			"underruns", st.Underruns,
			"queued", st.Queued)
	}
	if c.Bool("timing") {
		core.SetDebugWriter(func(line string) { slog.Info("timing", "event", line) })
		core.DumpTimingRing()
	}
	return nil
}
