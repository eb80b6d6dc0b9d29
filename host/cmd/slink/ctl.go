package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"slink/host/link"
	"slink/host/serial"
)

var errUsage = errors.New("missing argument")

func ctlCommand() cli.Command {
	flags := []cli.Flag{
		cli.StringFlag{
			Name:  "device",
			Usage: "Serial device of the board",
			Value: "/dev/ttyUSB0",
		},
		cli.IntFlag{
			Name:  "baud",
			Usage: "Baud rate",
			Value: serial.DefaultBaud,
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "Time allowed for each command",
			Value: 2 * time.Second,
		},
	}
	return cli.Command{
		Name:  "ctl",
		Usage: "send control commands to a board over its UART",
		Subcommands: []cli.Command{
			{Name: "start", Usage: "start the timer group", Flags: flags, Action: withClient(func(ctx context.Context, cl *link.Client, _ *cli.Context) error {
				return cl.Start(ctx)
			})},
			{Name: "stop", Usage: "stop the timer group", Flags: flags, Action: withClient(func(ctx context.Context, cl *link.Client, _ *cli.Context) error {
				return cl.Stop(ctx)
			})},
			{Name: "reset", Usage: "abort the animation and clear an emergency stop", Flags: flags, Action: withClient(func(ctx context.Context, cl *link.Client, _ *cli.Context) error {
				return cl.Reset(ctx)
			})},
			{Name: "estop", Usage: "emergency stop", Flags: flags, Action: withClient(func(ctx context.Context, cl *link.Client, _ *cli.Context) error {
				return cl.EmergencyStop(ctx)
			})},
			{
				Name:      "prescale",
				Usage:     "change the prescale factor",
				ArgsUsage: "<factor>",
				Flags: append([]cli.Flag{cli.BoolTFlag{
					Name:  "sync",
					Usage: "wait for the guard window (default on)",
				}}, flags...),
				Action: withClient(func(ctx context.Context, cl *link.Client, c *cli.Context) error {
					v, err := uintArg(c, 0)
					if err != nil {
						return err
					}
					return cl.SetPrescale(ctx, v, c.BoolT("sync"))
				}),
			},
			{
				Name:      "mode",
				Usage:     "select an animation mode",
				ArgsUsage: "<n>",
				Flags:     flags,
				Action: withClient(func(ctx context.Context, cl *link.Client, c *cli.Context) error {
					n, err := uintArg(c, 0)
					if err != nil {
						return err
					}
					frame, err := cl.SetMode(ctx, int(n))
					if err != nil {
						return err
					}
					slog.Info("mode set", "mode", n, "frame", frame)
					return nil
				}),
			},
			{
				Name:  "config",
				Usage: "show the running configuration",
				Flags: flags,
				Action: withClient(func(ctx context.Context, cl *link.Client, _ *cli.Context) error {
					cfg, err := cl.Config(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%+v\n", cfg)
					return nil
				}),
			},
			{
				Name:      "stats",
				Usage:     "show channel counters",
				ArgsUsage: "[channel]",
				Flags:     flags,
				Action: withClient(func(ctx context.Context, cl *link.Client, c *cli.Context) error {
					first, last := uint32(0), uint32(0)
					if c.NArg() > 0 {
						n, err := uintArg(c, 0)
						if err != nil {
							return err
						}
						first, last = n, n
					} else {
						cfg, err := cl.Config(ctx)
						if err != nil {
							return err
						}
						last = uint32(cfg.Channels) - 1
					}
					for ch := first; ch <= last; ch++ {
						st, err := cl.Stats(ctx, uint8(ch))
						if err != nil {
							return err
						}
						fmt.Printf("ch%02d %-3s phase=%-6d edges=%-8d underruns=%-6d stalls=%-6d queued=%d\n",
							st.Channel, st.State, st.LastPhase, st.Edges, st.Underruns, st.Stalls, st.Queued)
					}
					return nil
				}),
			},
			{
				Name:  "dict",
				Usage: "print the board's message dictionary",
				Flags: flags,
				Action: withClient(func(_ context.Context, cl *link.Client, _ *cli.Context) error {
					d := cl.Dictionary()
					fmt.Println("version", d.Version)
					for _, m := range d.Messages {
						kind := "command"
						if m.Response {
							kind = "response"
						}
						fmt.Printf("%3d %-8s %s %s\n", m.ID, kind, m.Name, m.Format)
					}
					return nil
				}),
			},
		},
	}
}

// withClient opens the board's port, connects and runs fn with a context
// bounded by --timeout.
func withClient(fn func(context.Context, *link.Client, *cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		cfg := serial.DefaultConfig(c.String("device"))
		cfg.Baud = c.Int("baud")
		port, err := serial.Open(cfg)
		if err != nil {
			return err
		}
		cl := link.New(port, slog.Default())
		defer cl.Close()

		ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
		defer cancel()
		if err := cl.Connect(ctx); err != nil {
			return err
		}
		return fn(ctx, cl, c)
	}
}

func uintArg(c *cli.Context, i int) (uint32, error) {
	if c.NArg() <= i {
		return 0, fmt.Errorf("%s: %w", c.Command.ArgsUsage, errUsage)
	}
	v, err := strconv.ParseUint(c.Args().Get(i), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
