// Package daemon assembles the feeder from its configuration and runs it:
// hardware, feed controller, sensing loop, stores, brokers, scheduled jobs and
// the control surface.
package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/classifier"
	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/eventstore"
	"git.home.luguber.info/inful/feeder/internal/feed"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/gate"
	"git.home.luguber.info/inful/feeder/internal/hardware"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	"git.home.luguber.info/inful/feeder/internal/metrics"
	"git.home.luguber.info/inful/feeder/internal/notify"
	"git.home.luguber.info/inful/feeder/internal/profile"
	"git.home.luguber.info/inful/feeder/internal/scale"
	"git.home.luguber.info/inful/feeder/internal/sensing"
	"git.home.luguber.info/inful/feeder/internal/server/httpserver"
	"git.home.luguber.info/inful/feeder/internal/state"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Startup tare: feed that was airborne when the process started has to land
// before the empty bowl is measured.
const (
	tareDelay   = 2 * time.Second
	tareSamples = 30
)

// Daemon owns the hardware, the feed controller, the sensing loop and the
// control surface for the life of the process.
type Daemon struct {
	config    *config.Config
	status    atomic.Value // Status
	startTime time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex
	clock     clockwork.Clock

	devices    *hardware.Devices
	sensor     *scale.Sensor
	shared     *state.Shared
	recorder   metrics.Recorder
	registry   *prom.Registry
	profiles   profile.Store
	eventStore eventstore.Store
	projection *eventstore.FeedHistoryProjection
	publisher  notify.Publisher
	emitter    *EventEmitter
	controller *feed.Controller
	stopCamera func() error
	loop       *sensing.Loop
	scheduler  *Scheduler
	httpServer *httpserver.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithClock replaces the wall clock for the controller, the sensing loop,
// the scheduler and the simulated hardware.
func WithClock(c clockwork.Clock) Option { return func(d *Daemon) { d.clock = c } }

// New builds every component from cfg. Nothing runs until Start. On error
// the components opened so far are closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Daemon, err error) {
	if cfg == nil {
		return nil, errors.ConfigError("configuration is required").Build()
	}

	d := &Daemon{
		config:     cfg,
		stopChan:   make(chan struct{}),
		clock:      clockwork.NewRealClock(),
		recorder:   metrics.NoopRecorder{},
		stopCamera: func() error { return nil },
	}
	for _, opt := range opts {
		opt(d)
	}
	d.status.Store(StatusStopped)
	defer func() {
		if err != nil {
			d.closeResources()
		}
	}()

	cal := scale.CalibrationFromConfig(cfg.Calibration)
	d.devices, err = hardware.Open(cfg.Hardware, cal, d.clock)
	if err != nil {
		return nil, err
	}
	d.sensor = scale.NewSensor(d.devices.Reader, cal, scale.ReducerFor(cfg.Calibration.Reducer))
	if !cal.Calibrated() {
		slog.Warn("Load cell is not calibrated, weights are raw values",
			slog.Float64("reference_factor", cal.ReferenceFactor))
	}

	d.shared = state.New(cfg.Feed.FlowRate)
	d.shared.SetStatus(state.StatusStandby)

	var promHandler http.Handler
	if cfg.Monitoring.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
		promHandler = metrics.HTTPHandler(d.registry)
	}

	d.profiles, err = profile.NewSQLiteStore(cfg.Profiles.Database, cfg.Feed.Ratio)
	if err != nil {
		return nil, err
	}

	d.eventStore, err = eventstore.NewSQLiteStore(cfg.Events.Database)
	if err != nil {
		return nil, err
	}
	d.projection = eventstore.NewFeedHistoryProjection(d.eventStore, cfg.Events.HistorySize)
	if rerr := d.projection.Rebuild(ctx); rerr != nil {
		// Non-fatal: history starts empty
		slog.Warn("Failed to rebuild feed history projection", logfields.Error(rerr))
	}

	d.publisher = notify.FromConfig(ctx, cfg.Events)
	d.emitter = NewEventEmitter(d.eventStore, d.projection, d.publisher)

	d.controller = feed.NewController(feed.ConfigFrom(cfg.Feed, cfg.Retry), d.sensor, d.devices.Gate, d.shared,
		feed.WithClock(d.clock),
		feed.WithObserver(d.emitter),
		feed.WithRecorder(d.recorder),
	)

	source, stopCamera, err := camera.Open(ctx, cfg.Camera)
	if err != nil {
		return nil, err
	}
	d.stopCamera = stopCamera

	loopOpts := []sensing.Option{
		sensing.WithClock(d.clock),
		sensing.WithRecorder(d.recorder),
		sensing.WithProfiles(d.profiles),
	}
	if source != nil {
		loopOpts = append(loopOpts, sensing.WithCamera(source, camera.NewBuffer()))
	}
	var labels *classifier.Labels
	if cfg.Classifier.LabelsFile != "" {
		labels, err = classifier.LoadLabels(cfg.Classifier.LabelsFile)
		if err != nil {
			return nil, err
		}
	}
	var cls classifier.Classifier
	if cfg.Classifier.Endpoint != "" {
		cls = classifier.NewHTTPClassifier(cfg.Classifier.Endpoint, cfg.Classifier.Timeout, labels)
		loopOpts = append(loopOpts, sensing.WithClassifier(cls, labels))
	} else {
		slog.Info("No classifier endpoint configured, automatic feeding is off")
	}
	d.loop = sensing.New(sensing.ConfigFrom(cfg.Sensing, cfg.Classifier), d.shared, d.controller, d.sensor, loopOpts...)

	d.scheduler, err = NewScheduler(d.clock)
	if err != nil {
		return nil, errors.DaemonError("failed to create scheduler").WithCause(err).Build()
	}

	var frames *camera.Buffer
	if source != nil {
		frames = d.loop.Frames()
	}
	d.httpServer = httpserver.New(cfg, d, httpserver.Options{
		Profiles:          d.profiles,
		Classifier:        cls,
		Labels:            labels,
		Accept:            classifier.RangeFromConfig(cfg.Classifier),
		Frames:            frames,
		History:           d.projection,
		PrometheusHandler: promHandler,
	})

	return d, nil
}

// Start runs the control surface, the scheduled jobs and the sensing loop.
// It blocks until ctx is done, Stop is called or the sensing loop fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return errors.DaemonError("daemon is not in stopped state").WithContext("status", string(d.GetStatus())).Build()
	}
	if d.devices == nil {
		d.mu.Unlock()
		return errors.DaemonError("daemon has been shut down").Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = d.clock.Now()

	ctx, cancel := d.stopAwareContext(ctx)
	d.cancel = cancel

	if d.devices.NeedsTare {
		d.tare(ctx)
	}

	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return err
	}
	d.emitter.Start(ctx)
	if err := d.scheduleJobs(); err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return err
	}
	d.scheduler.Start(ctx)

	if d.config.Daemon.ArmOnStart {
		d.SetArmed(true)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop.Run(gctx) })
	d.group = g

	d.status.Store(StatusRunning)
	slog.Info("Feeder daemon started",
		slog.String("address", d.httpServer.Addr().String()),
		slog.Bool("armed", d.shared.Running()),
		slog.String("driver", string(d.config.Hardware.Driver)))

	// Release lock before blocking so Stop and the handlers are not held up
	d.mu.Unlock()

	err := g.Wait()
	if err != nil {
		slog.Error("Sensing loop failed", logfields.Error(err))
	}
	return err
}

// tare measures the startup tare. A failed tare leaves the bowl offset at
// zero and the daemon keeps running.
func (d *Daemon) tare(ctx context.Context) {
	d.shared.SetStatus("Taring scale...")
	defer d.shared.SetStatus(state.StatusStandby)

	if !d.sleep(ctx, tareDelay) {
		return
	}
	t, err := d.sensor.Tare(ctx, tareSamples)
	switch {
	case stderrors.Is(err, scale.ErrUncalibrated):
		slog.Warn("Skipping startup tare on an uncalibrated load cell")
	case err != nil:
		d.recorder.IncSensorError("tare")
		slog.Error("Startup tare failed", logfields.Error(err))
	default:
		slog.Info("Startup tare measured", slog.Float64("tare_kg", t))
	}
}

func (d *Daemon) scheduleJobs() error {
	if interval := d.config.Events.StatusInterval; interval > 0 {
		if _, err := d.scheduler.ScheduleEvery("status-heartbeat", interval, d.heartbeat); err != nil {
			return errors.DaemonError("failed to schedule status heartbeat").WithCause(err).Build()
		}
	}
	if d.config.Events.Retention > 0 {
		if _, err := d.scheduler.ScheduleEvery("event-retention", 24*time.Hour, d.pruneEvents); err != nil {
			return errors.DaemonError("failed to schedule event retention").WithCause(err).Build()
		}
	}
	return nil
}

func (d *Daemon) heartbeat() {
	snap := d.shared.Snapshot()
	hb := StatusHeartbeat{
		Running:   snap.Running,
		Feeding:   snap.Feeding,
		Degraded:  snap.Degraded,
		Status:    snap.Status,
		Subject:   snap.Detection.Subject,
		Timestamp: d.clock.Now().UTC(),
	}
	if snap.HasWeight {
		w := snap.Weight
		hb.Weight = &w
	}
	slog.Debug("Status heartbeat", logfields.State(snap.Status), slog.Bool("running", snap.Running),
		slog.Bool("feeding", snap.Feeding))
	d.emitter.PublishStatus(hb)
}

func (d *Daemon) pruneEvents() {
	cutoff := d.clock.Now().Add(-d.config.Events.Retention)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := d.eventStore.PruneBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune feed events", logfields.Error(err))
		return
	}
	if n > 0 {
		slog.Info("Pruned feed events", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	}
	if err := d.projection.Rebuild(ctx); err != nil {
		slog.Warn("Failed to rebuild feed history projection", logfields.Error(err))
	}
}

// Stop disarms, forces the gate closed and idle, then shuts the components
// down in reverse order. It is safe to call more than once.
func (d *Daemon) Stop(ctx context.Context) error {
	// Unblocks a Start that is still taring.
	d.stopOnce.Do(func() { close(d.stopChan) })

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() == StatusStopping || d.devices == nil {
		return nil
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping feeder daemon")

	d.shared.Disarm()
	d.recorder.SetArmed(false)

	if d.group != nil {
		_ = d.group.Wait()
	}
	if d.controller != nil {
		if err := d.controller.Wait(ctx); err != nil {
			slog.Warn("Feed session still running at shutdown", logfields.Error(err))
		}
	}
	var errs []error
	if d.devices != nil && d.devices.Gate != nil {
		if err := gate.Release(ctx, d.devices.Gate); err != nil {
			slog.Error("Failed to release gate", logfields.Error(err))
			errs = append(errs, err)
		}
	}
	if d.cancel != nil {
		d.cancel()
	}

	if err := d.scheduler.Stop(ctx); err != nil {
		slog.Error("Failed to stop scheduler", logfields.Error(err))
	}
	if err := d.httpServer.Stop(ctx); err != nil {
		slog.Error("Failed to stop HTTP server", logfields.Error(err))
		errs = append(errs, err)
	}
	if d.emitter != nil {
		if err := d.emitter.Stop(ctx); err != nil {
			slog.Warn("Dropped queued notifications", logfields.Error(err))
		}
	}
	errs = append(errs, d.closeResources()...)

	d.status.Store(StatusStopped)
	if !d.startTime.IsZero() {
		slog.Info("Feeder daemon stopped", slog.Duration("uptime", d.clock.Since(d.startTime)))
	}
	return stderrors.Join(errs...)
}

// closeResources releases stores, brokers, the camera and the pins.
func (d *Daemon) closeResources() []error {
	var errs []error
	closeAll := []struct {
		name string
		fn   func() error
	}{
		{"camera", d.stopCamera},
		{"publisher", func() error {
			if d.publisher == nil {
				return nil
			}
			return d.publisher.Close()
		}},
		{"event store", func() error {
			if d.eventStore == nil {
				return nil
			}
			return d.eventStore.Close()
		}},
		{"profile store", func() error {
			if d.profiles == nil {
				return nil
			}
			return d.profiles.Close()
		}},
		{"hardware", d.devices.Close},
	}
	for _, c := range closeAll {
		if c.fn == nil {
			continue
		}
		if err := c.fn(); err != nil {
			slog.Error(fmt.Sprintf("Failed to close %s", c.name), logfields.Error(err))
			errs = append(errs, err)
		}
	}
	d.stopCamera = nil
	d.publisher = nil
	d.eventStore = nil
	d.profiles = nil
	d.devices = nil
	return errs
}

// GetStatus returns the current daemon status
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// Snapshot returns the shared record.
func (d *Daemon) Snapshot() state.Snapshot { return d.shared.Snapshot() }

// SetArmed arms or disarms automatic feeding. Disarming cancels an active
// session at its next poll.
func (d *Daemon) SetArmed(armed bool) {
	if armed {
		d.shared.SetRunning(true)
		if !d.shared.Feeding() {
			d.shared.SetStatus(state.StatusMonitoring)
		}
	} else {
		d.shared.Disarm()
	}
	d.recorder.SetArmed(armed)
	slog.Info("Feeder armed state changed", slog.Bool("armed", armed))
}

// StartTime returns when Start was called.
func (d *Daemon) StartTime() time.Time { return d.startTime }

// Addr returns the control surface listen address once started.
func (d *Daemon) Addr() string {
	if a := d.httpServer.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// History exposes the feed history projection.
func (d *Daemon) History() *eventstore.FeedHistoryProjection { return d.projection }
