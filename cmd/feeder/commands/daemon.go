package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/daemon"
	"git.home.luguber.info/inful/feeder/internal/logfields"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Listen string `short:"l" help:"Override daemon.http.address"`
	Arm    bool   `help:"Arm automatic feeding at startup"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	configureLogging(cfg.Monitoring.Logging, root.Verbose)
	if d.Listen != "" {
		cfg.Daemon.HTTP.Address = d.Listen
	}
	if d.Arm {
		cfg.Daemon.ArmOnStart = true
	}
	return RunDaemon(cfg)
}

func RunDaemon(cfg *config.Config) error {
	slog.Info("Starting daemon mode",
		slog.String("driver", string(cfg.Hardware.Driver)),
		slog.String("address", cfg.Daemon.HTTP.Address))

	// Create main context for the daemon
	ctx, cancel := interruptible()
	defer cancel()

	d, err := daemon.New(ctx, cfg)
	if err != nil {
		return err
	}

	// Start daemon in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errChan:
		if runErr != nil {
			slog.Error("Daemon exited", logfields.Error(runErr))
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Daemon.HTTP.ShutdownTimeout)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return runErr
}
