package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/feeder/internal/scale"
)

// WeighCmd implements the 'weigh' command.
type WeighCmd struct {
	Samples int `help:"Raw reads averaged into the sample" default:"5"`
}

func (w *WeighCmd) Run(_ *Global, root *CLI) error {
	_, sensor, dev, err := openScale(root)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()

	ctx, cancel := interruptible()
	defer cancel()
	return RunWeigh(ctx, os.Stdout, sensor, w.Samples)
}

// RunWeigh prints one sample. No startup tare is applied, so the reading is
// relative to the configured zero offset and container.
func RunWeigh(ctx context.Context, out io.Writer, sensor *scale.Sensor, samples int) error {
	s, err := sensor.Sample(ctx, max(samples, 1))
	if err != nil {
		return err
	}
	if s.Degraded {
		_, _ = fmt.Fprintf(out, "%.0f (raw, uncalibrated)\n", s.Weight)
		return nil
	}
	_, _ = fmt.Fprintf(out, "%.3f kg (raw %.0f)\n", s.Weight, s.Raw)
	return nil
}
