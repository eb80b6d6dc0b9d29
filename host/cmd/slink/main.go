package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli"

	"slink/config"
)

func main() {
	app := cli.NewApp()
	app.Name = "slink"
	app.Usage = "drive and simulate the phase-animated strobe controller"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log debug output",
		},
	}
	app.Before = func(c *cli.Context) error {
		level := slog.LevelInfo
		if c.GlobalBool("verbose") {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}
	app.Commands = []cli.Command{
		simulateCommand(),
		viewCommand(),
		ctlCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("slink failed", "error", err)
		os.Exit(1)
	}
}

var presetFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "Board preset (YAML); built-in defaults when empty",
	},
	cli.IntFlag{
		Name:  "prescale",
		Usage: "Override the preset's prescale factor (0 keeps it)",
	},
}

// loadPreset reads --config and applies --prescale.
func loadPreset(c *cli.Context) (*config.Preset, error) {
	p := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if p, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if v := c.Int("prescale"); v > 0 {
		p.Prescale = uint32(v)
	}
	return p, nil
}
