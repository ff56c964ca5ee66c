package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// Event type names.
const (
	TypeSessionStarted   = "SessionStarted"
	TypePulseDispensed   = "PulseDispensed"
	TypeSessionCompleted = "SessionCompleted"
	TypeSessionCancelled = "SessionCancelled"
	TypeSessionFaulted   = "SessionFaulted"
)

// SessionStarted is emitted when a feed session takes the slot.
type SessionStarted struct {
	BaseEvent
	Subject string  `json:"subject"`
	Target  float64 `json:"target_kg"`
}

// NewSessionStarted creates a SessionStarted event.
func NewSessionStarted(sessionID, subject string, target float64, at time.Time) (*SessionStarted, error) {
	base, err := newBase(sessionID, TypeSessionStarted, at, map[string]any{
		"subject":   subject,
		"target_kg": target,
	})
	if err != nil {
		return nil, err
	}
	return &SessionStarted{BaseEvent: base, Subject: subject, Target: target}, nil
}

// PulseDispensed is emitted after each gate pulse.
type PulseDispensed struct {
	BaseEvent
	Duration time.Duration `json:"pulse_ms"`
	Weight   float64       `json:"weight_kg"` // reading that sized the pulse
}

// NewPulseDispensed creates a PulseDispensed event.
func NewPulseDispensed(sessionID string, pulse time.Duration, weight float64, at time.Time) (*PulseDispensed, error) {
	base, err := newBase(sessionID, TypePulseDispensed, at, map[string]any{
		"pulse_ms":  pulse.Milliseconds(),
		"weight_kg": weight,
	})
	if err != nil {
		return nil, err
	}
	return &PulseDispensed{BaseEvent: base, Duration: pulse, Weight: weight}, nil
}

// Outcome is the shared payload of the terminal session events.
type Outcome struct {
	Weight    float64 `json:"weight_kg"`
	Delivered float64 `json:"delivered_kg"`
	Pulses    int     `json:"pulses"`
	Reason    string  `json:"reason,omitempty"`
}

// SessionEnded is emitted once per session with the terminal state.
type SessionEnded struct {
	BaseEvent
	Outcome Outcome
}

// NewSessionCompleted creates a SessionCompleted event.
func NewSessionCompleted(sessionID string, o Outcome, at time.Time) (*SessionEnded, error) {
	return newEnded(sessionID, TypeSessionCompleted, o, at)
}

// NewSessionCancelled creates a SessionCancelled event.
func NewSessionCancelled(sessionID string, o Outcome, at time.Time) (*SessionEnded, error) {
	return newEnded(sessionID, TypeSessionCancelled, o, at)
}

// NewSessionFaulted creates a SessionFaulted event. o.Reason carries the fault.
func NewSessionFaulted(sessionID string, o Outcome, at time.Time) (*SessionEnded, error) {
	return newEnded(sessionID, TypeSessionFaulted, o, at)
}

func newEnded(sessionID, eventType string, o Outcome, at time.Time) (*SessionEnded, error) {
	base, err := newBase(sessionID, eventType, at, o)
	if err != nil {
		return nil, err
	}
	return &SessionEnded{BaseEvent: base, Outcome: o}, nil
}

func newBase(sessionID, eventType string, at time.Time, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, errors.EventStoreError("failed to marshal "+eventType+" payload").
			WithCause(err).
			WithContext("session_id", sessionID).
			Build()
	}
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{
		EventSessionID: sessionID,
		EventType:      eventType,
		EventTimestamp: at,
		EventPayload:   data,
	}, nil
}
