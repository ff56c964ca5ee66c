package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/eventstore"
	"git.home.luguber.info/inful/feeder/internal/feed"
	"git.home.luguber.info/inful/feeder/internal/state"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Profiles.Database = ":memory:"
	cfg.Events.Database = ":memory:"
	cfg.Daemon.HTTP.Address = "127.0.0.1:0"
	cfg.Monitoring.Metrics.Enabled = true
	cfg.Sensing.TickInterval = 10 * time.Millisecond
	cfg.Sensing.WeightEvery = 1
	cfg.Hardware.Sim.InitialWeight = 0.1

	// Fast dispensing so a whole session fits in a test.
	cfg.Feed.FlowRate = 5
	cfg.Hardware.Sim.FlowRate = 5
	cfg.Feed.MinPulse = 5 * time.Millisecond
	cfg.Feed.MaxPulse = 100 * time.Millisecond
	cfg.Feed.SettleInterval = 10 * time.Millisecond
	cfg.Feed.Cooldown = 10 * time.Millisecond
	cfg.Feed.PollInterval = 5 * time.Millisecond
	cfg.Feed.Tolerance = 0.01
	return cfg
}

// startDaemon runs Start in the background and waits for it to report running.
func startDaemon(t *testing.T, cfg *config.Config) (*Daemon, <-chan error) {
	t.Helper()
	d, err := New(t.Context(), cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(t.Context()) }()
	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d, errCh
}

func TestDaemon_StartServeStop(t *testing.T) {
	d, errCh := startDaemon(t, testConfig())
	base := "http://" + d.Addr()

	require.Eventually(t, func() bool { return d.Snapshot().HasWeight }, 5*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 0.1, d.Snapshot().Weight, 0.001)
	assert.Equal(t, state.StatusStandby, d.Snapshot().Status)

	resp, err := http.Get(base + "/status")
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, status["running"])

	resp, err = http.Post(base+"/api/armed", "application/json", strings.NewReader(`{"armed":true}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, d.Snapshot().Running)
	assert.Equal(t, state.StatusMonitoring, d.Snapshot().Status)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "feeder_armed 1")
	assert.Contains(t, string(body), "go_goroutines")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.Equal(t, StatusStopped, d.GetStatus())
	assert.False(t, d.Snapshot().Running)
	assert.Equal(t, state.StatusPaused, d.Snapshot().Status)

	_, err = http.Get(base + "/status")
	assert.Error(t, err, "listener should be closed")
}

func TestDaemon_ArmOnStart(t *testing.T) {
	cfg := testConfig()
	cfg.Daemon.ArmOnStart = true
	d, _ := startDaemon(t, cfg)

	assert.True(t, d.Snapshot().Running)
}

func TestDaemon_StartTwiceFails(t *testing.T) {
	d, _ := startDaemon(t, testConfig())

	err := d.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in stopped state")
}

func TestDaemon_StopWithoutStart(t *testing.T) {
	d, err := New(t.Context(), testConfig())
	require.NoError(t, err)

	require.NoError(t, d.Stop(t.Context()))
	assert.Equal(t, StatusStopped, d.GetStatus())
	require.NoError(t, d.Stop(t.Context()), "second stop is a no-op")

	err = d.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shut down")
}

func TestDaemon_CancelledContextEndsStart(t *testing.T) {
	d, err := New(t.Context(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestDaemon_SessionIsRecorded(t *testing.T) {
	d, _ := startDaemon(t, testConfig())
	d.SetArmed(true)

	s, ok := d.controller.TryStart(t.Context(), 0.3, "Rex")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		summary, found := d.History().GetSession(s.ID)
		return found && summary.Status == eventstore.StatusCompleted
	}, 10*time.Second, 10*time.Millisecond)

	summary, _ := d.History().GetSession(s.ID)
	assert.Equal(t, "Rex", summary.Subject)
	assert.InDelta(t, 0.3, summary.Weight, 0.02)
	assert.Positive(t, summary.Pulses)

	events, err := d.eventStore.GetBySessionID(t.Context(), s.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, eventstore.TypeSessionStarted, events[0].Type())
	assert.Equal(t, eventstore.TypeSessionCompleted, events[len(events)-1].Type())

	last, ok := d.History().LastFed("Rex")
	require.True(t, ok)
	assert.Equal(t, s.ID, last.SessionID)
}

func TestDaemon_DisarmCancelsSession(t *testing.T) {
	cfg := testConfig()
	cfg.Hardware.Sim.FlowRate = 0.01 // the bowl fills far slower than modelled
	d, _ := startDaemon(t, cfg)
	d.SetArmed(true)

	s, ok := d.controller.TryStart(t.Context(), 5, "Rex")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		summary, _ := d.History().GetSession(s.ID)
		return summary.Pulses > 0
	}, 5*time.Second, 5*time.Millisecond)

	d.SetArmed(false)

	require.Eventually(t, func() bool {
		summary, _ := d.History().GetSession(s.ID)
		return summary.Status == eventstore.StatusCancelled
	}, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.Snapshot().Status == state.StatusPaused }, 5*time.Second, 10*time.Millisecond)
}

func TestDaemon_PruneEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Events.Retention = 24 * time.Hour
	d, err := New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	old, err := eventstore.NewSessionStarted("old", "Rex", 0.3, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	fresh, err := eventstore.NewSessionStarted("fresh", "Rex", 0.3, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, d.eventStore.Append(t.Context(), old))
	require.NoError(t, d.eventStore.Append(t.Context(), fresh))

	d.pruneEvents()

	events, err := d.eventStore.GetRange(t.Context(), time.Time{}, time.Now())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].SessionID())
	_, found := d.History().GetSession("old")
	assert.False(t, found)
}

func TestDaemon_HeartbeatPublishesStatus(t *testing.T) {
	d, err := New(t.Context(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	pub := &recordingPublisher{}
	d.emitter = NewEventEmitter(nil, nil, pub)
	d.emitter.Start(t.Context())

	d.shared.SetStatus(state.StatusMonitoring)
	d.heartbeat()
	d.shared.SetWeight(0.25, false)
	d.heartbeat()
	require.NoError(t, d.emitter.Stop(t.Context()))

	msgs := pub.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, SubjectStatus, msgs[0].subject)

	var first, second StatusHeartbeat
	require.NoError(t, json.Unmarshal(msgs[0].payload, &first))
	require.NoError(t, json.Unmarshal(msgs[1].payload, &second))
	assert.Nil(t, first.Weight)
	assert.Equal(t, state.StatusMonitoring, first.Status)
	require.NotNil(t, second.Weight)
	assert.InDelta(t, 0.25, *second.Weight, 1e-9)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(t.Context(), nil)
	require.Error(t, err)
}

func TestNew_UnknownDriverFails(t *testing.T) {
	cfg := testConfig()
	cfg.Hardware.Driver = "gpio-magic"

	_, err := New(t.Context(), cfg)
	require.Error(t, err)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []outbound
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, outbound{subject: subject, payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) messages() []outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]outbound(nil), p.msgs...)
}

var _ feed.Observer = (*EventEmitter)(nil)
