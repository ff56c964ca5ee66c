// Package commands implements the feeder command line.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/hardware"
	"git.home.luguber.info/inful/feeder/internal/scale"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"feeder.yaml" env:"FEEDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Daemon    DaemonCmd    `cmd:"" help:"Run the feeder: sensing loop, feed controller and control surface"`
	Init      InitCmd      `cmd:"" help:"Write an example configuration file"`
	Calibrate CalibrateCmd `cmd:"" help:"Measure zero offset and reference factor with a known mass"`
	Flowtest  FlowtestCmd  `cmd:"" help:"Open the gate for a fixed time and measure the flow rate"`
	Weigh     WeighCmd     `cmd:"" help:"Print one calibrated weight sample"`
	Pets      PetsCmd      `cmd:"" help:"Manage registered pets"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(newLogger(os.Stderr, level, config.LogFormatText))
	return nil
}

// configureLogging applies the monitoring.logging section. -v always wins.
func configureLogging(cfg config.MonitoringLogging, verbose bool) {
	level := cfg.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(newLogger(os.Stderr, level, cfg.Format))
}

func newLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openScale loads the configuration and opens the scale for the one-shot
// hardware commands. The returned close func releases the pins.
func openScale(root *CLI) (*config.Config, *scale.Sensor, *hardware.Devices, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	cal := scale.CalibrationFromConfig(cfg.Calibration)
	dev, err := hardware.Open(cfg.Hardware, cal, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, scale.NewSensor(dev.Reader, cal, scale.ReducerFor(cfg.Calibration.Reducer)), dev, nil
}

// interruptible returns a context cancelled by SIGINT/SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
