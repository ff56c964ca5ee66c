package feed_test

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/feed"
	"git.home.luguber.info/inful/feeder/internal/hardware"
	"git.home.luguber.info/inful/feeder/internal/scale"
	"git.home.luguber.info/inful/feeder/internal/state"
	helpers "git.home.luguber.info/inful/feeder/internal/testutil/testutils"
)

func TestController_ClosedLoopAgainstSimulator(t *testing.T) {
	clk := clockwork.NewFakeClock()
	cal := scale.Calibration{ZeroOffset: 392502, ReferenceFactor: 438760, ContainerOffset: 0.01}
	cfg := testConfig()
	sim := hardware.NewSim(cal, 0.05, cfg.FlowRate*0.8, clk) // gate delivers less than modelled
	sensor := scale.NewSensor(sim, cal, scale.Median)
	shared := state.New(cfg.FlowRate)
	shared.SetRunning(true)

	ctrl := feed.NewController(cfg, sensor, sim, shared, feed.WithClock(clk))
	s, ok := ctrl.TryStart(t.Context(), 0.45, "Rex")
	require.True(t, ok)
	helpers.Drive(t, clk, step, s.Done())

	require.Equal(t, feed.Completed, s.State())
	assert.Greater(t, len(s.Pulses()), 1, "under-delivery needs a corrective pulse")
	assert.InDelta(t, 0.45, sim.Food(), cfg.Tolerance+1e-6)
	assert.GreaterOrEqual(t, sim.Food(), 0.45-cfg.Tolerance)
	assert.Equal(t, len(s.Pulses()), sim.Opens())
}
