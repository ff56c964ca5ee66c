package feed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/gate"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	"git.home.luguber.info/inful/feeder/internal/metrics"
	"git.home.luguber.info/inful/feeder/internal/scale"
	"git.home.luguber.info/inful/feeder/internal/state"
)

// Sampler is the weight source a session reads between pulses.
type Sampler interface {
	Sample(ctx context.Context, n int) (scale.Sample, error)
}

var errInterrupted = stderrors.New("feed session interrupted")

// Controller runs at most one feed session at a time.
type Controller struct {
	cfg      Config
	sensor   Sampler
	gate     gate.Actuator
	shared   *state.Shared
	clock    clockwork.Clock
	observer Observer
	recorder metrics.Recorder
	logger   *slog.Logger
	stopped  func() bool

	active atomic.Pointer[Session]
	wg     sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option { return func(fc *Controller) { fc.clock = c } }

// WithObserver receives session events.
func WithObserver(o Observer) Option { return func(fc *Controller) { fc.observer = o } }

// WithRecorder records session metrics.
func WithRecorder(r metrics.Recorder) Option { return func(fc *Controller) { fc.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(fc *Controller) { fc.logger = l } }

// WithCancelSource replaces the cancellation check polled during waits.
// The default cancels when the shared record is disarmed.
func WithCancelSource(stopped func() bool) Option {
	return func(fc *Controller) { fc.stopped = stopped }
}

// NewController wires a controller. cfg must already be validated.
func NewController(cfg Config, sensor Sampler, actuator gate.Actuator, shared *state.Shared, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		sensor:   sensor,
		gate:     actuator,
		shared:   shared,
		clock:    clockwork.NewRealClock(),
		observer: nopObserver{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stopped == nil {
		c.stopped = func() bool { return !shared.Running() }
	}
	if c.cfg.PollInterval <= 0 {
		c.cfg.PollInterval = 50 * time.Millisecond
	}
	if c.cfg.SampleCount < config.MinFeedSampleCount {
		c.cfg.SampleCount = config.MinFeedSampleCount
	}
	c.logger = c.logger.With(logfields.Component("feed"))
	return c
}

// TryStart starts a session for target kg unless one is already active.
// It never blocks on the session itself. A second concurrent call, or a
// non-positive target, returns false and changes nothing.
func (c *Controller) TryStart(ctx context.Context, target float64, subject string) (*Session, bool) {
	if !(target > 0) || math.IsInf(target, 0) {
		c.logger.Warn("Ignoring feed request without a positive target",
			logfields.Subject(subject), logfields.TargetKG(target))
		return nil, false
	}
	s := newSession(target, subject, c.clock.Now())
	if !c.active.CompareAndSwap(nil, s) {
		c.logger.Debug("Feed session already active", logfields.Subject(subject))
		return nil, false
	}
	c.shared.SetFeeding(true)
	c.recorder.SetFeeding(true)
	c.shared.SetStatus(fmt.Sprintf("Feeding %s (target %.3fkg)", subject, target))

	c.wg.Add(1)
	go c.run(ctx, s)
	return s, true
}

// Active returns the live session, or nil. A session stays active through
// its cooldown.
func (c *Controller) Active() *Session { return c.active.Load() }

// Wait blocks until every started session has released its slot or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(ctx context.Context, s *Session) {
	defer c.wg.Done()
	defer func() {
		c.active.CompareAndSwap(s, nil)
		close(s.done)
	}()

	log := c.logger.With(logfields.SessionID(s.ID), logfields.Subject(s.Subject))
	log.Info("Feed session started", logfields.TargetKG(s.Target))
	c.emit(ctx, s, Event{Type: EventStarted})

	outcome, err := c.dispenseSafely(ctx, s, log)
	c.finish(ctx, s, outcome, err, log)
	c.cooldown(ctx)
}

func (c *Controller) dispenseSafely(ctx context.Context, s *Session, log *slog.Logger) (outcome State, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Feed session panicked", slog.Any("panic", r))
			outcome = Faulted
			err = errors.InternalError("feed session panicked").WithContext("panic", fmt.Sprint(r)).Build()
		}
	}()
	return c.dispense(ctx, s, log)
}

func (c *Controller) dispense(ctx context.Context, s *Session, log *slog.Logger) (State, error) {
	for {
		if c.cancelled(ctx) {
			return Cancelled, nil
		}
		s.setState(Dispensing)

		sample, err := c.sample(ctx, log)
		if err != nil {
			if stderrors.Is(err, errInterrupted) || c.cancelled(ctx) {
				return Cancelled, nil
			}
			c.shared.SetNoReading()
			return Faulted, err
		}
		if sample.Degraded {
			return Faulted, errors.ConfigError("scale is not calibrated").Build()
		}
		c.shared.SetWeight(sample.Weight, false)
		c.recorder.SetWeight(sample.Weight)
		s.observe(sample.Weight)

		missing := s.Target - sample.Weight
		if missing <= c.cfg.Tolerance {
			return Completed, nil
		}

		d := ComputeDuration(missing, c.cfg.FlowRate, c.cfg.MinPulse, c.cfg.MaxPulse)
		c.shared.SetStatus(fmt.Sprintf("Dispensing %s (%.1fs)...", s.Subject, d.Seconds()))
		log.Debug("Opening gate", logfields.WeightKG(sample.Weight), logfields.MissingKG(missing), logfields.PulseDuration(d))

		var opened time.Time
		finished := true
		err = gate.Pulse(ctx, c.gate, func() error {
			opened = c.clock.Now()
			finished = c.wait(ctx, d)
			return nil
		})
		if !opened.IsZero() {
			held := c.clock.Since(opened)
			s.addPulse(held)
			c.recorder.ObservePulse(held)
			c.emit(ctx, s, Event{Type: EventPulse, Pulse: held})
		}
		if err != nil {
			return Faulted, err
		}
		if !finished {
			return Cancelled, nil
		}

		s.setState(Settling)
		c.shared.SetStatus(fmt.Sprintf("Settling (%s)...", c.cfg.Settle))
		if !c.wait(ctx, c.cfg.Settle) {
			return Cancelled, nil
		}
	}
}

func (c *Controller) sample(ctx context.Context, log *slog.Logger) (scale.Sample, error) {
	var out scale.Sample
	err := c.cfg.Retry.Do(ctx, c.retryWait, errors.CanRetry, func(attempt int) error {
		smp, err := c.sensor.Sample(ctx, c.cfg.SampleCount)
		if err != nil {
			c.recorder.IncSensorError("session")
			log.Warn("Weight read failed", slog.Int("attempt", attempt+1), logfields.Error(err))
			return err
		}
		out = smp
		return nil
	})
	return out, err
}

func (c *Controller) retryWait(ctx context.Context, d time.Duration) error {
	if !c.wait(ctx, d) {
		return errInterrupted
	}
	return nil
}

func (c *Controller) finish(ctx context.Context, s *Session, outcome State, cause error, log *slog.Logger) {
	if outcome == Faulted {
		if err := gate.Release(ctx, c.gate); err != nil {
			log.Error("Failed to release gate after fault", logfields.Error(err))
		}
	}

	var reason, status string
	switch outcome {
	case Completed:
		reason = "target reached"
		status = fmt.Sprintf("Feed complete (%s, weight: %.3fkg)", s.Subject, s.LastWeight())
	case Cancelled:
		reason = "manual stop"
		if ctx.Err() != nil {
			reason = "shutdown"
		}
		status = fmt.Sprintf("Feed stopped (%s)", reason)
	default:
		reason = faultReason(cause)
		status = fmt.Sprintf("Feed stopped (fault: %s)", reason)
	}

	c.shared.SetStatus(status)
	c.shared.SetFeeding(false)
	s.terminate(outcome, reason, cause, c.clock.Now())

	mo := metrics.SessionOutcome(outcome)
	c.recorder.SetFeeding(false)
	c.recorder.IncSession(mo)
	c.recorder.ObserveSessionDuration(mo, s.Duration())
	c.recorder.ObserveDispensed(s.Delivered())

	evType := map[State]EventType{Completed: EventCompleted, Cancelled: EventCancelled, Faulted: EventFaulted}[outcome]
	c.emit(ctx, s, Event{Type: evType, Reason: reason})

	attrs := []any{logfields.State(string(outcome)), slog.String("reason", reason),
		logfields.WeightKG(s.LastWeight()), slog.Int("pulses", len(s.Pulses()))}
	if cause != nil {
		log.Error("Feed session faulted", append(attrs, logfields.Error(cause))...)
		return
	}
	log.Info("Feed session ended", attrs...)
}

func (c *Controller) cooldown(ctx context.Context) {
	if c.cfg.Cooldown > 0 {
		t := c.clock.NewTimer(c.cfg.Cooldown)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.Chan():
		}
	}
	if c.shared.Running() {
		c.shared.SetStatus(state.StatusMonitoring)
	}
}

// wait sleeps for d on the controller clock, polling for cancellation every
// PollInterval. It returns false if the wait was interrupted.
func (c *Controller) wait(ctx context.Context, d time.Duration) bool {
	deadline := c.clock.Now().Add(d)
	for {
		if c.cancelled(ctx) {
			return false
		}
		left := deadline.Sub(c.clock.Now())
		if left <= 0 {
			return true
		}
		t := c.clock.NewTimer(min(left, c.cfg.PollInterval))
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.Chan():
		}
	}
}

func (c *Controller) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil || c.stopped()
}

func (c *Controller) emit(ctx context.Context, s *Session, ev Event) {
	ev.SessionID = s.ID
	ev.Subject = s.Subject
	ev.Target = s.Target
	ev.Weight = s.LastWeight()
	ev.Delivered = s.Delivered()
	ev.Pulses = len(s.Pulses())
	if ev.At.IsZero() {
		ev.At = c.clock.Now()
	}
	c.observer.OnFeedEvent(context.WithoutCancel(ctx), ev)
}

func faultReason(err error) string {
	if err == nil {
		return "unknown"
	}
	if ce, ok := errors.AsClassified(err); ok {
		return ce.Message()
	}
	return err.Error()
}
