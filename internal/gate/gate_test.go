package gate_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/gate"
	helpers "git.home.luguber.info/inful/feeder/internal/testutil/testutils"
)

func TestPulse_ReleasesAfterHold(t *testing.T) {
	g := &helpers.RecordingGate{}
	var openDuringHold bool

	err := gate.Pulse(t.Context(), g, func() error {
		openDuringHold = g.IsOpen()
		return nil
	})

	require.NoError(t, err)
	assert.True(t, openDuringHold)
	assert.False(t, g.IsOpen())
	assert.Equal(t, []string{helpers.CallOpen, helpers.CallClose, helpers.CallIdle}, g.Calls())
}

func TestPulse_HoldErrorStillReleases(t *testing.T) {
	g := &helpers.RecordingGate{}
	holdErr := stderrors.New("interrupted")

	err := gate.Pulse(t.Context(), g, func() error { return holdErr })

	require.ErrorIs(t, err, holdErr)
	assert.Equal(t, []string{helpers.CallOpen, helpers.CallClose, helpers.CallIdle}, g.Calls())
}

func TestPulse_OpenFailureReleasesAndClassifies(t *testing.T) {
	g := &helpers.RecordingGate{OpenErr: stderrors.New("pwm busy")}
	held := false

	err := gate.Pulse(t.Context(), g, func() error {
		held = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, held)
	assert.True(t, errors.HasCategory(err, errors.CategoryActuator))
	assert.Equal(t, []string{helpers.CallOpen, helpers.CallClose, helpers.CallIdle}, g.Calls())
}

func TestPulse_PanicInHoldReleases(t *testing.T) {
	g := &helpers.RecordingGate{}

	assert.Panics(t, func() {
		_ = gate.Pulse(t.Context(), g, func() error { panic("boom") })
	})
	assert.False(t, g.IsOpen())
	assert.Equal(t, 1, g.Count(helpers.CallIdle))
}

func TestRelease_IdlesEvenIfCloseFails(t *testing.T) {
	g := &helpers.RecordingGate{CloseErr: stderrors.New("stuck")}

	err := gate.Release(t.Context(), g)

	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryActuator))
	assert.Equal(t, []string{helpers.CallClose, helpers.CallIdle}, g.Calls())
}

func TestRelease_IgnoresCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	var seen []error
	g := &ctxGate{seen: &seen}

	require.NoError(t, gate.Release(ctx, g))
	require.Len(t, seen, 2)
	for _, err := range seen {
		assert.NoError(t, err)
	}
}

func TestRelease_KeepsActuatorClassification(t *testing.T) {
	orig := errors.ActuatorError("servo detached").WithContext("pin", "GPIO18").Build()
	g := &helpers.RecordingGate{IdleErr: orig}

	err := gate.Release(t.Context(), g)

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "servo detached", ce.Message())
}

// ctxGate records the context error seen by each release call.
type ctxGate struct{ seen *[]error }

func (g *ctxGate) Open(ctx context.Context) error { return nil }
func (g *ctxGate) Close(ctx context.Context) error {
	*g.seen = append(*g.seen, ctx.Err())
	return nil
}
func (g *ctxGate) Idle(ctx context.Context) error {
	*g.seen = append(*g.seen, ctx.Err())
	return nil
}
