package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/hardware"
	"git.home.luguber.info/inful/feeder/internal/scale"
)

// CalibrateCmd implements the 'calibrate' command.
type CalibrateCmd struct {
	Mass    float64 `help:"Reference mass in kg" default:"0.2"`
	Samples int     `help:"Raw reads per measurement (median)" default:"30"`
}

func (c *CalibrateCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	// Raw counts only; the configured calibration is irrelevant here.
	dev, err := hardware.Open(cfg.Hardware, scale.CalibrationFromConfig(cfg.Calibration), nil)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()

	ctx, cancel := interruptible()
	defer cancel()
	_, err = RunCalibrate(ctx, os.Stdin, os.Stdout, dev.Reader, c.Mass, c.Samples)
	return err
}

// CalibrationResult holds the two values that go into the calibration section.
type CalibrationResult struct {
	ZeroOffset      float64
	ReferenceFactor float64
}

// RunCalibrate walks the operator through an empty and a loaded measurement.
// Each measurement is the median of samples raw reads.
func RunCalibrate(ctx context.Context, in io.Reader, out io.Writer, reader scale.RawReader, mass float64, samples int) (CalibrationResult, error) {
	if !(mass > 0) {
		return CalibrationResult{}, errors.ValidationError("reference mass must be positive").WithContext("mass", mass).Build()
	}
	sensor := scale.NewSensor(reader, scale.Calibration{}, scale.Median)
	prompt := bufio.NewReader(in)

	measure := func(msg string) (float64, error) {
		_, _ = fmt.Fprint(out, msg)
		if _, err := prompt.ReadString('\n'); err != nil && err != io.EOF {
			return 0, errors.WrapError(err, errors.CategoryValidation, "failed to read confirmation").Build()
		}
		_, _ = fmt.Fprintf(out, "Reading %d samples...\n", samples)
		raw, err := sensor.ReadRaw(ctx, samples)
		if err != nil {
			return 0, err
		}
		return math.Round(raw), nil
	}

	zero, err := measure("Remove everything from the scale and press Enter... ")
	if err != nil {
		return CalibrationResult{}, err
	}
	_, _ = fmt.Fprintf(out, "Empty raw reading (zero_offset): %.0f\n", zero)

	loaded, err := measure(fmt.Sprintf("Place the %.3f kg reference mass on the scale and press Enter... ", mass))
	if err != nil {
		return CalibrationResult{}, err
	}
	_, _ = fmt.Fprintf(out, "Loaded raw reading: %.0f\n", loaded)

	diff := loaded - zero
	if diff <= 0 {
		return CalibrationResult{}, errors.SensorError("loaded reading is not above the empty reading; check the load cell wiring (signal pair reversed?)").
			WithContext("zero", zero).WithContext("loaded", loaded).Build()
	}
	res := CalibrationResult{ZeroOffset: zero, ReferenceFactor: math.Round(diff / mass)}

	_, _ = fmt.Fprintf(out, "\nAdd to the calibration section of your configuration:\n\ncalibration:\n  zero_offset: %.0f\n  reference_factor: %.0f\n",
		res.ZeroOffset, res.ReferenceFactor)
	return res, nil
}
