package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsDisarmedStandby(t *testing.T) {
	s := New(0.05)
	snap := s.Snapshot()
	assert.False(t, snap.Running)
	assert.False(t, snap.Feeding)
	assert.False(t, snap.HasWeight)
	assert.Equal(t, StatusStandby, snap.Status)
}

func TestSnapshotProjection(t *testing.T) {
	tests := []struct {
		name        string
		running     bool
		weight      *float64
		target      float64
		wantMissing float64
		wantSeconds float64
	}{
		{"armed under target", true, ptr(0.1), 0.4, 0.3, 6.0},
		{"disarmed", false, ptr(0.1), 0.4, 0, 0},
		{"no target", true, ptr(0.1), 0, 0, 0},
		{"already above target", true, ptr(0.5), 0.4, 0, 0},
		{"no reading", true, nil, 0.4, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(0.05)
			s.SetRunning(tt.running)
			if tt.weight != nil {
				s.SetWeight(*tt.weight, false)
			}
			s.SetDetection(Detection{Subject: "Rex", Target: tt.target})

			snap := s.Snapshot()
			assert.InDelta(t, tt.wantMissing, snap.Missing, 1e-9)
			assert.InDelta(t, tt.wantSeconds, snap.Seconds, 1e-9)
		})
	}
}

func TestNoReadingDropsStaleWeight(t *testing.T) {
	s := New(0.05)
	s.SetWeight(0.2, true)
	w, ok := s.Weight()
	require.True(t, ok)
	assert.InDelta(t, 0.2, w, 1e-9)
	assert.True(t, s.Snapshot().Degraded)
	assert.True(t, s.Degraded())

	s.SetNoReading()
	assert.False(t, s.Degraded())
	_, ok = s.Weight()
	assert.False(t, ok)
}

func TestDisarm(t *testing.T) {
	s := New(0.05)
	s.SetRunning(true)
	s.SetStatus(StatusMonitoring)
	s.Disarm()
	assert.False(t, s.Running())
	assert.Equal(t, StatusPaused, s.Status())
}

func TestConcurrentAccess(t *testing.T) {
	s := New(0.05)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				s.SetRunning(j%2 == 0)
				s.SetWeight(float64(i), false)
				s.SetStatus("x")
				s.SetFeeding(j%3 == 0)
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	w, ok := s.Weight()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, w, 0.0)
}

func ptr(v float64) *float64 { return &v }
