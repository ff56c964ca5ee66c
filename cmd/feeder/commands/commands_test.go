package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/hardware"
	"git.home.luguber.info/inful/feeder/internal/profile"
	"git.home.luguber.info/inful/feeder/internal/scale"
)

// steppedReader returns empty for the first n reads and loaded afterwards.
type steppedReader struct {
	mu            sync.Mutex
	reads, n      int
	empty, loaded int64
}

func (r *steppedReader) ReadRaw(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	if r.reads <= r.n {
		return r.empty, nil
	}
	return r.loaded, nil
}

func TestRunCalibrate(t *testing.T) {
	reader := &steppedReader{n: 5, empty: 392500, loaded: 392500 + 87752}
	var out bytes.Buffer

	res, err := RunCalibrate(t.Context(), strings.NewReader("\n\n"), &out, reader, 0.2, 5)
	require.NoError(t, err)

	assert.InDelta(t, 392500, res.ZeroOffset, 0)
	assert.InDelta(t, 438760, res.ReferenceFactor, 0)
	assert.Contains(t, out.String(), "zero_offset: 392500")
	assert.Contains(t, out.String(), "reference_factor: 438760")
}

func TestRunCalibrate_ReversedWiring(t *testing.T) {
	reader := &steppedReader{n: 3, empty: 1000, loaded: 900}

	_, err := RunCalibrate(t.Context(), strings.NewReader("\n\n"), &bytes.Buffer{}, reader, 0.2, 3)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategorySensor))
	assert.Contains(t, err.Error(), "wiring")
}

func TestRunCalibrate_RejectsNonPositiveMass(t *testing.T) {
	_, err := RunCalibrate(t.Context(), strings.NewReader(""), &bytes.Buffer{}, &steppedReader{}, 0, 3)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestRunFlowTest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cal := scale.Calibration{ZeroOffset: 1000, ReferenceFactor: 400000}
	sim := hardware.NewSim(cal, 0.05, 0.08, clock)
	sensor := scale.NewSensor(sim, cal, scale.Mean)
	var out bytes.Buffer

	type result struct {
		rate float64
		err  error
	}
	done := make(chan result, 1)
	go func() {
		rate, err := RunFlowTest(t.Context(), &out, sensor, sim, clock, FlowTest{
			Open: time.Second, Landing: 2 * time.Second, Samples: 3, TareSamples: 3,
		})
		done <- result{rate, err}
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	clock.Advance(2 * time.Second)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.InDelta(t, 0.08, r.rate, 1e-4)
	case <-time.After(5 * time.Second):
		t.Fatal("flow test did not finish")
	}
	assert.Equal(t, 1, sim.Opens())
	assert.Contains(t, out.String(), "Flow rate: 0.0800 kg/s")
}

func TestRunFlowTest_UncalibratedFails(t *testing.T) {
	cal := scale.Calibration{ReferenceFactor: 1}
	sim := hardware.NewSim(cal, 0, 0.08, clockwork.NewFakeClock())

	_, err := RunFlowTest(t.Context(), &bytes.Buffer{}, scale.NewSensor(sim, cal, nil), sim, clockwork.NewFakeClock(), FlowTest{Open: time.Second})
	require.ErrorIs(t, err, scale.ErrUncalibrated)
	assert.Zero(t, sim.Opens(), "gate must stay shut without a tare")
}

func TestRunWeigh(t *testing.T) {
	cal := scale.Calibration{ZeroOffset: 1000, ReferenceFactor: 400000}
	sim := hardware.NewSim(cal, 0.125, 0, nil)
	var out bytes.Buffer

	require.NoError(t, RunWeigh(t.Context(), &out, scale.NewSensor(sim, cal, nil), 3))
	assert.True(t, strings.HasPrefix(out.String(), "0.125 kg"), out.String())
}

func TestRunWeigh_Uncalibrated(t *testing.T) {
	cal := scale.Calibration{ReferenceFactor: 0}
	sim := hardware.NewSim(scale.Calibration{ZeroOffset: 10, ReferenceFactor: 100}, 1, 0, nil)
	var out bytes.Buffer

	require.NoError(t, RunWeigh(t.Context(), &out, scale.NewSensor(sim, cal, nil), 1))
	assert.Contains(t, out.String(), "uncalibrated")
}

func TestPets(t *testing.T) {
	store, err := profile.NewSQLiteStore(":memory:", 0.02)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := t.Context()

	var out bytes.Buffer
	require.NoError(t, RunPetsList(ctx, &out, store))
	assert.Equal(t, "No pets registered\n", out.String())

	out.Reset()
	require.NoError(t, RunPetsAdd(ctx, &out, store, profile.Registration{Name: "Rex", Weight: 25, Category: 207, Breed: "golden retriever"}))
	assert.Contains(t, out.String(), "portion 0.500 kg")

	out.Reset()
	require.NoError(t, RunPetsList(ctx, &out, store))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "207")
	assert.Contains(t, lines[1], "Rex")
	assert.Contains(t, lines[1], "golden retriever")

	err = RunPetsAdd(ctx, &out, store, profile.Registration{Name: " ", Weight: 3, Category: 1})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeder.yaml")
	var out bytes.Buffer

	require.NoError(t, RunInit(&out, path, false))
	assert.Contains(t, out.String(), "Initialized successfully")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, config.DriverPeriph, cfg.Hardware.Driver)

	err = RunInit(&out, path, false)
	require.Error(t, err, "existing file without --force")
	require.NoError(t, RunInit(&out, path, true))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, 0, config.LogFormatJSON).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())

	buf.Reset()
	newLogger(&buf, 0, config.LogFormatText).Debug("hidden")
	assert.Empty(t, buf.String())
}
