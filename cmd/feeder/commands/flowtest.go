package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/feeder/internal/gate"
	"git.home.luguber.info/inful/feeder/internal/scale"
)

// FlowtestCmd implements the 'flowtest' command.
type FlowtestCmd struct {
	Open    time.Duration `help:"How long the gate stays open" default:"1s"`
	Landing time.Duration `help:"Wait for airborne feed after closing" default:"2s"`
	Samples int           `help:"Raw reads for the final weight" default:"15"`
}

func (f *FlowtestCmd) Run(_ *Global, root *CLI) error {
	cfg, sensor, dev, err := openScale(root)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()

	ctx, cancel := interruptible()
	defer cancel()
	_, err = RunFlowTest(ctx, os.Stdout, sensor, dev.Gate, clockwork.NewRealClock(), FlowTest{
		Open:        f.Open,
		Landing:     f.Landing,
		Samples:     f.Samples,
		TareSamples: cfg.Calibration.TareSamples,
	})
	return err
}

// FlowTest parameterizes one open/close measurement.
type FlowTest struct {
	Open        time.Duration
	Landing     time.Duration
	Samples     int
	TareSamples int
}

// RunFlowTest tares, opens the gate for t.Open, waits for the feed to land
// and reports kg/s. The gate is closed and idled on every path.
func RunFlowTest(ctx context.Context, out io.Writer, sensor *scale.Sensor, actuator gate.Actuator, clock clockwork.Clock, t FlowTest) (float64, error) {
	_, _ = fmt.Fprintln(out, "Taring scale...")
	if _, err := sensor.Tare(ctx, max(t.TareSamples, 1)); err != nil {
		return 0, err
	}

	_, _ = fmt.Fprintf(out, "Opening gate for %s\n", t.Open)
	var held time.Duration
	err := gate.Pulse(ctx, actuator, func() error {
		start := clock.Now()
		defer func() { held = clock.Since(start) }()
		select {
		case <-clock.After(t.Open):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return 0, err
	}

	_, _ = fmt.Fprintf(out, "Gate closed, waiting %s for feed to land...\n", t.Landing)
	select {
	case <-clock.After(t.Landing):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	s, err := sensor.Sample(ctx, max(t.Samples, 1))
	if err != nil {
		return 0, err
	}
	rate := s.Weight / held.Seconds()
	_, _ = fmt.Fprintf(out, "Dispensed %.3f kg in %s\nFlow rate: %.4f kg/s (feed.flow_rate)\n", s.Weight, held.Round(time.Millisecond), rate)
	return rate, nil
}
