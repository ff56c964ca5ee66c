// Package sensing runs the passive observation loop: it keeps the live weight
// current, buffers camera frames, and starts a feed session when a registered
// subject that still needs food is recognised.
package sensing

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/classifier"
	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/feed"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	"git.home.luguber.info/inful/feeder/internal/metrics"
	"git.home.luguber.info/inful/feeder/internal/profile"
	"git.home.luguber.info/inful/feeder/internal/state"
)

// StatusNewSubject is shown for a confident match without a profile.
const StatusNewSubject = "New pet detected"

const captureTimeout = 2 * time.Second

// Starter is the part of the feed controller the loop depends on.
type Starter interface {
	TryStart(ctx context.Context, target float64, subject string) (*feed.Session, bool)
	Active() *feed.Session
}

// Config holds the loop cadence. Every* values count ticks.
type Config struct {
	TickInterval  time.Duration
	WeightEvery   int
	FrameEvery    int
	ClassifyEvery int
	Accept        classifier.Range
}

// ConfigFrom builds the loop configuration.
func ConfigFrom(s config.SensingConfig, c config.ClassifierConfig) Config {
	return Config{
		TickInterval:  s.TickInterval,
		WeightEvery:   s.WeightEvery,
		FrameEvery:    s.FrameEvery,
		ClassifyEvery: s.ClassifyEvery,
		Accept:        classifier.RangeFromConfig(c),
	}
}

// Loop is the sensing loop. It is driven by a single goroutine.
type Loop struct {
	cfg        Config
	shared     *state.Shared
	controller Starter
	sensor     feed.Sampler
	source     camera.Source
	frames     *camera.Buffer
	classifier classifier.Classifier
	labels     *classifier.Labels
	profiles   profile.Store
	clock      clockwork.Clock
	recorder   metrics.Recorder
	logger     *slog.Logger

	ticks    int
	eligible int
}

// Option configures a Loop.
type Option func(*Loop)

// WithCamera captures frames from source into buf.
func WithCamera(source camera.Source, buf *camera.Buffer) Option {
	return func(l *Loop) {
		l.source = source
		l.frames = buf
	}
}

// WithClassifier enables recognition. Labels may be nil.
func WithClassifier(c classifier.Classifier, labels *classifier.Labels) Option {
	return func(l *Loop) {
		l.classifier = c
		l.labels = labels
	}
}

// WithProfiles sets the registered subjects.
func WithProfiles(p profile.Store) Option { return func(l *Loop) { l.profiles = p } }

func WithClock(c clockwork.Clock) Option { return func(l *Loop) { l.clock = c } }

func WithRecorder(r metrics.Recorder) Option { return func(l *Loop) { l.recorder = r } }

func WithLogger(lg *slog.Logger) Option { return func(l *Loop) { l.logger = lg } }

// New creates a loop over the shared record.
func New(cfg Config, shared *state.Shared, controller Starter, sensor feed.Sampler, opts ...Option) *Loop {
	l := &Loop{
		cfg:        cfg,
		shared:     shared,
		controller: controller,
		sensor:     sensor,
		clock:      clockwork.NewRealClock(),
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cfg.TickInterval <= 0 {
		l.cfg.TickInterval = 100 * time.Millisecond
	}
	l.cfg.WeightEvery = max(l.cfg.WeightEvery, 1)
	l.cfg.FrameEvery = max(l.cfg.FrameEvery, 1)
	l.cfg.ClassifyEvery = max(l.cfg.ClassifyEvery, 1)
	if l.frames == nil {
		l.frames = camera.NewBuffer()
	}
	l.logger = l.logger.With(logfields.Component("sensing"))
	return l
}

// Frames returns the buffer the loop captures into.
func (l *Loop) Frames() *camera.Buffer { return l.frames }

// Run ticks until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Sensing loop started", slog.Duration("tick", l.cfg.TickInterval))
	ticker := l.clock.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Sensing loop stopped")
			return nil
		case <-ticker.Chan():
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.ticks++
	if l.ticks%l.cfg.WeightEvery == 0 {
		l.readWeight(ctx)
	}
	if l.source != nil && l.ticks%l.cfg.FrameEvery == 0 {
		l.captureFrame(ctx)
	}

	running := l.shared.Running()
	l.recorder.SetArmed(running)
	if !running {
		l.eligible = 0
		if l.controller.Active() == nil {
			l.shared.SetStatus(state.StatusPaused)
		}
		return
	}
	if l.classifier == nil || l.controller.Active() != nil {
		return
	}
	l.eligible++
	if l.eligible%l.cfg.ClassifyEvery == 0 {
		l.recognise(ctx)
	}
}

func (l *Loop) readWeight(ctx context.Context) {
	s, err := l.sensor.Sample(ctx, 1)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.shared.SetNoReading()
		l.recorder.IncSensorError("sensing")
		l.logger.Warn("Weight read failed", logfields.Error(err))
		return
	}
	l.shared.SetWeight(s.Weight, s.Degraded)
	l.recorder.SetWeight(s.Weight)
}

func (l *Loop) captureFrame(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	f, err := l.source.Capture(ctx)
	if err != nil {
		if !stderrors.Is(err, camera.ErrNoFrame) && ctx.Err() == nil {
			l.logger.Debug("Frame capture failed", logfields.Error(err))
		}
		return
	}
	l.frames.Set(f)
}

func (l *Loop) recognise(ctx context.Context) {
	frame, seq := l.frames.Latest()
	if seq == 0 {
		return
	}
	res, err := l.classifier.Classify(ctx, frame)
	if err != nil {
		l.recorder.IncClassification(metrics.ClassifyError)
		l.logger.Warn("Classification failed", logfields.Error(err))
		return
	}
	l.decide(ctx, res)
}

// decide maps one prediction onto the shared record and possibly a session.
func (l *Loop) decide(ctx context.Context, res classifier.Result) {
	if !l.cfg.Accept.Accept(res) {
		l.shared.ClearDetection()
		l.shared.SetStatus(state.StatusMonitoring)
		l.recorder.IncClassification(metrics.ClassifyNoMatch)
		return
	}

	det := state.Detection{
		Category:   res.CategoryID,
		Label:      l.labels.Describe(res),
		Confidence: res.Confidence,
		At:         l.clock.Now(),
	}
	log := l.logger.With(logfields.Category(res.CategoryID), logfields.Confidence(res.Confidence))

	var (
		p     profile.Profile
		found bool
	)
	if l.profiles != nil {
		var err error
		p, found, err = l.profiles.Lookup(ctx, res.CategoryID)
		if err != nil {
			l.recorder.IncClassification(metrics.ClassifyError)
			log.Warn("Profile lookup failed", logfields.Error(err))
			return
		}
	}
	if !found {
		det.Subject = state.Unregistered
		l.shared.SetDetection(det)
		l.shared.SetStatus(StatusNewSubject)
		l.recorder.IncClassification(metrics.ClassifyUnregistered)
		log.Info("Unregistered subject detected")
		return
	}

	det.Subject = p.Name
	det.Weight = p.Weight
	det.Target = p.Target
	l.shared.SetDetection(det)
	log = log.With(logfields.Subject(p.Name), logfields.TargetKG(p.Target))

	weight, ok := l.shared.Weight()
	if !ok {
		l.shared.SetStatus(state.StatusNoReading)
		return
	}
	if l.shared.Degraded() {
		l.shared.SetStatus(state.StatusUncalibrated)
		log.Warn("Not feeding on an uncalibrated scale reading")
		return
	}
	if weight >= p.Target {
		l.shared.SetStatus(fmt.Sprintf("%s nearby (already fed)", p.Name))
		l.recorder.IncClassification(metrics.ClassifyAlreadyFed)
		return
	}
	if _, started := l.controller.TryStart(ctx, p.Target, p.Name); started {
		l.recorder.IncClassification(metrics.ClassifyStarted)
		log.Info("Starting feed", logfields.WeightKG(weight))
	}
}
