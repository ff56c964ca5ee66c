package feed

import (
	"context"
	"time"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventStarted   EventType = "session.started"
	EventPulse     EventType = "session.pulse"
	EventCompleted EventType = "session.completed"
	EventCancelled EventType = "session.cancelled"
	EventFaulted   EventType = "session.faulted"
)

// Event is emitted to the Observer on every session transition of interest.
type Event struct {
	Type      EventType
	SessionID string
	Subject   string
	Target    float64
	Weight    float64       // latest reading
	Delivered float64       // weight gained since the first reading
	Pulse     time.Duration // gate open time, EventPulse only
	Pulses    int
	Reason    string
	At        time.Time
}

// Observer receives session events. Calls are made from the session
// goroutine and should return promptly.
type Observer interface {
	OnFeedEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnFeedEvent(ctx context.Context, ev Event) { f(ctx, ev) }

type nopObserver struct{}

func (nopObserver) OnFeedEvent(context.Context, Event) {}
