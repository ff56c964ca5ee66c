package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestScheduler_ScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		id, err := s.ScheduleCron("test", "15 3 * * *", func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleCron("test", "this is not a cron", func() {})
		require.Error(t, err)
	})
}

func TestScheduler_ScheduleEvery(t *testing.T) {
	t.Run("returns job id for valid interval", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		id, err := s.ScheduleEvery("test", 10*time.Second, func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s, err := NewScheduler(nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleEvery("test", 0, func() {})
		require.Error(t, err)
	})
}

func TestScheduler_RunsOnFakeClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewScheduler(clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var runs atomic.Int32
	_, err = s.ScheduleEvery("heartbeat", time.Minute, func() { runs.Add(1) })
	require.NoError(t, err)
	s.Start(t.Context())

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return runs.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestScheduler_PanickingTaskKeepsRunning(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewScheduler(clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var runs atomic.Int32
	_, err = s.ScheduleEvery("flaky", time.Minute, func() {
		runs.Add(1)
		panic("boom")
	})
	require.NoError(t, err)
	s.Start(t.Context())

	require.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return runs.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}
