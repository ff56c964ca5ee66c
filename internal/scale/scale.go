// Package scale converts raw load cell counts into calibrated, tared weight samples.
//
// A Sensor serializes every batch of raw reads behind a mutex, so the sensing
// loop and a running feed session can share one amplifier without
// interleaving clock pulses inside a single conversion.
package scale

import (
	"context"
	"math"
	"sync"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// RawReader reads a single raw conversion from the load cell amplifier.
type RawReader interface {
	ReadRaw(ctx context.Context) (int64, error)
}

// Calibration holds the fixed conversion from raw counts to kilograms.
type Calibration struct {
	ZeroOffset      float64
	ReferenceFactor float64 // counts per kilogram; <= 1 means uncalibrated
	StartupTare     float64 // kg measured once at startup
	ContainerOffset float64 // kg of the bowl
}

// CalibrationFromConfig builds a calibration with a zero startup tare.
func CalibrationFromConfig(c config.CalibrationConfig) Calibration {
	return Calibration{
		ZeroOffset:      c.ZeroOffset,
		ReferenceFactor: c.ReferenceFactor,
		ContainerOffset: c.ContainerOffset,
	}
}

// Calibrated reports whether the reference factor passes the sanity floor.
func (c Calibration) Calibrated() bool {
	return c.ReferenceFactor > 1
}

// Absolute converts a reduced raw count into kilograms before tare.
func (c Calibration) Absolute(raw float64) float64 {
	return (raw - c.ZeroOffset) / c.ReferenceFactor
}

// Sample is one reduced weight reading.
type Sample struct {
	Weight   float64 // kg, never negative
	Raw      float64 // reduced raw count
	Count    int     // raw reads reduced into this sample
	Degraded bool    // uncalibrated: Weight is the uncorrected raw value
}

// ErrUncalibrated is returned by Tare when the reference factor is not usable.
var ErrUncalibrated = errors.ConfigError("load cell reference factor is not calibrated").Build()

// Sensor reads and converts weight samples.
type Sensor struct {
	mu     sync.Mutex
	reader RawReader
	reduce Reducer
	cal    Calibration
}

// NewSensor creates a sensor. A nil reducer defaults to Mean.
func NewSensor(reader RawReader, cal Calibration, reduce Reducer) *Sensor {
	if reduce == nil {
		reduce = Mean
	}
	return &Sensor{reader: reader, reduce: reduce, cal: cal}
}

// Calibration returns the current calibration including the measured tare.
func (s *Sensor) Calibration() Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal
}

// ReadRaw reads n raw conversions and returns their reduced value.
func (s *Sensor) ReadRaw(ctx context.Context, n int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(ctx, n)
}

func (s *Sensor) readLocked(ctx context.Context, n int) (float64, error) {
	if n < 1 {
		return 0, errors.ValidationError("sample count must be >= 1").WithContext("count", n).Build()
	}
	values := make([]float64, 0, n)
	for range n {
		if err := ctx.Err(); err != nil {
			return 0, errors.WrapError(err, errors.CategorySensor, "weight read interrupted").Build()
		}
		v, err := s.reader.ReadRaw(ctx)
		if err != nil {
			if _, ok := errors.AsClassified(err); ok {
				return 0, err
			}
			return 0, errors.SensorError("weight sensor read failed").WithCause(err).Build()
		}
		values = append(values, float64(v))
	}
	reduced := s.reduce(values)
	if math.IsNaN(reduced) || math.IsInf(reduced, 0) {
		return 0, errors.SensorError("weight sensor produced a non-finite value").Build()
	}
	return reduced, nil
}

// Sample reads n raw conversions and converts them into a tared weight
// clamped at zero. Read failures are SensorErrors and never become a zero sample.
func (s *Sensor) Sample(ctx context.Context, n int) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readLocked(ctx, n)
	if err != nil {
		return Sample{}, err
	}
	if !s.cal.Calibrated() {
		return Sample{Weight: math.Max(0, raw), Raw: raw, Count: n, Degraded: true}, nil
	}
	w := s.cal.Absolute(raw) - s.cal.StartupTare - s.cal.ContainerOffset
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return Sample{}, errors.SensorError("weight conversion produced a non-finite value").
			WithContext("raw", raw).Build()
	}
	return Sample{Weight: math.Max(0, w), Raw: raw, Count: n}, nil
}

// Tare measures the absolute weight over n reads and stores it as the startup
// tare. It returns ErrUncalibrated without touching the tare when the reference
// factor is unusable.
func (s *Sensor) Tare(ctx context.Context, n int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cal.Calibrated() {
		return 0, ErrUncalibrated
	}
	raw, err := s.readLocked(ctx, n)
	if err != nil {
		return 0, err
	}
	s.cal.StartupTare = s.cal.Absolute(raw)
	return s.cal.StartupTare, nil
}
