package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/feeder/internal/eventstore"
	"git.home.luguber.info/inful/feeder/internal/feed"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	"git.home.luguber.info/inful/feeder/internal/notify"
)

const publishQueueSize = 64

// SubjectStatus is the broker subject of the periodic status heartbeat.
const SubjectStatus = "status"

// StatusHeartbeat is the periodic status message.
type StatusHeartbeat struct {
	Running   bool      `json:"running"`
	Feeding   bool      `json:"feeding"`
	Weight    *float64  `json:"weight_kg"` // null without a reading
	Degraded  bool      `json:"degraded"`
	Status    string    `json:"status"`
	Subject   string    `json:"subject,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notification is the broker message for one session event.
type Notification struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type outbound struct {
	subject string
	payload []byte
}

// EventEmitter handles feed session event emission to the event store.
// It persists each event, updates the history projection and queues the
// event for broker fan-out.
type EventEmitter struct {
	store      eventstore.Store
	projection *eventstore.FeedHistoryProjection
	publisher  notify.Publisher
	drained    chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	queue   chan outbound
}

// NewEventEmitter creates a new EventEmitter. publisher may be nil.
func NewEventEmitter(store eventstore.Store, projection *eventstore.FeedHistoryProjection, publisher notify.Publisher) *EventEmitter {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &EventEmitter{
		store:      store,
		projection: projection,
		publisher:  publisher,
		drained:    make(chan struct{}),
		queue:      make(chan outbound, publishQueueSize),
	}
}

// Start runs the broker publishing worker until Stop. It must be called once.
func (e *EventEmitter) Start(ctx context.Context) {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(e.drained)
		for msg := range e.queue {
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := e.publisher.Publish(pctx, msg.subject, msg.payload); err != nil {
				slog.Warn("Failed to publish feed event", logfields.Component("notify"),
					slog.String("subject", msg.subject), logfields.Error(err))
			}
			cancel()
		}
	}()
}

// Stop closes the publish queue and waits for the worker to drain it,
// bounded by ctx. Without a prior Start the queued messages are discarded.
func (e *EventEmitter) Stop(ctx context.Context) error {
	e.mu.Lock()
	started := e.started
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-e.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnFeedEvent implements feed.Observer.
func (e *EventEmitter) OnFeedEvent(ctx context.Context, ev feed.Event) {
	event, err := toStoreEvent(ev)
	if err != nil {
		slog.Error("Failed to build feed event", logfields.SessionID(ev.SessionID), logfields.Error(err))
		return
	}
	// Terminal events are still recorded during shutdown.
	if err := e.EmitEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Error("Failed to record feed event", logfields.SessionID(ev.SessionID),
			slog.String("type", event.Type()), logfields.Error(err))
	}
	payload, err := json.Marshal(Notification{
		ID:        event.ID(),
		SessionID: event.SessionID(),
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		Payload:   event.Payload(),
	})
	if err != nil {
		return
	}
	e.enqueue(string(ev.Type), payload)
}

// PublishStatus queues a heartbeat snapshot for the brokers.
func (e *EventEmitter) PublishStatus(status StatusHeartbeat) {
	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	e.enqueue(SubjectStatus, payload)
}

// EmitEvent persists an event to the event store and updates the projection.
// This is the canonical way to record session lifecycle events.
func (e *EventEmitter) EmitEvent(ctx context.Context, event eventstore.Event) error {
	if e.store != nil {
		if err := e.store.Append(ctx, event); err != nil {
			return err
		}
	}
	if e.projection != nil {
		e.projection.Apply(event)
	}
	return nil
}

// enqueue drops the notification when the queue is full rather than block
// the session goroutine.
func (e *EventEmitter) enqueue(subject string, payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- outbound{subject: subject, payload: payload}:
	default:
		slog.Warn("Publish queue full, dropping feed event", slog.String("subject", subject))
	}
}

func toStoreEvent(ev feed.Event) (eventstore.Event, error) {
	outcome := eventstore.Outcome{
		Weight:    ev.Weight,
		Delivered: ev.Delivered,
		Pulses:    ev.Pulses,
		Reason:    ev.Reason,
	}
	switch ev.Type {
	case feed.EventStarted:
		return eventstore.NewSessionStarted(ev.SessionID, ev.Subject, ev.Target, ev.At)
	case feed.EventPulse:
		return eventstore.NewPulseDispensed(ev.SessionID, ev.Pulse, ev.Weight, ev.At)
	case feed.EventCompleted:
		return eventstore.NewSessionCompleted(ev.SessionID, outcome, ev.At)
	case feed.EventCancelled:
		return eventstore.NewSessionCancelled(ev.SessionID, outcome, ev.At)
	default:
		return eventstore.NewSessionFaulted(ev.SessionID, outcome, ev.At)
	}
}

// Compile-time check that EventEmitter implements feed.Observer.
var _ feed.Observer = (*EventEmitter)(nil)
