// Package eventstore persists feed session events and projects them into a
// bounded feeding history.
package eventstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Session status values in the history read model.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFaulted   = "faulted"
)

// SessionSummary is a read model of one feed session.
type SessionSummary struct {
	SessionID string        `json:"session_id"`
	Subject   string        `json:"subject"`
	Target    float64       `json:"target_kg"`
	Status    string        `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Pulses    int           `json:"pulses"`
	OpenTime  time.Duration `json:"open_time"` // sum of pulse durations
	Weight    float64       `json:"weight_kg"`
	Delivered float64       `json:"delivered_kg"`
	Reason    string        `json:"reason,omitempty"`
}

// FeedHistoryProjection maintains an in-memory view of recent sessions,
// reconstructed from the event store at startup and updated as events arrive.
type FeedHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	sessions map[string]*SessionSummary
	history  []*SessionSummary // ended sessions, newest first
	maxSize  int
	lastSync time.Time
}

// NewFeedHistoryProjection creates a new projection backed by the given store.
func NewFeedHistoryProjection(store Store, maxHistorySize int) *FeedHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &FeedHistoryProjection{
		store:    store,
		sessions: make(map[string]*SessionSummary),
		history:  make([]*SessionSummary, 0, maxHistorySize),
		maxSize:  maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *FeedHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sessions = make(map[string]*SessionSummary)
	p.history = make([]*SessionSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	slices.SortStableFunc(p.history, func(a, b *SessionSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event as it is emitted.
func (p *FeedHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *FeedHistoryProjection) applyEventLocked(event Event) {
	id := event.SessionID()
	if id == "" {
		return
	}

	summary, exists := p.sessions[id]
	if !exists {
		summary = &SessionSummary{SessionID: id, Status: StatusRunning, StartedAt: event.Timestamp()}
		p.sessions[id] = summary
	}

	switch event.Type() {
	case TypeSessionStarted:
		summary.StartedAt = event.Timestamp()
		var payload struct {
			Subject string  `json:"subject"`
			Target  float64 `json:"target_kg"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Subject = payload.Subject
			summary.Target = payload.Target
		}

	case TypePulseDispensed:
		summary.Pulses++
		var payload struct {
			PulseMS int64 `json:"pulse_ms"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.OpenTime += time.Duration(payload.PulseMS) * time.Millisecond
		}

	case TypeSessionCompleted, TypeSessionCancelled, TypeSessionFaulted:
		ended := event.Timestamp()
		summary.EndedAt = &ended
		summary.Duration = ended.Sub(summary.StartedAt)
		summary.Status = map[string]string{
			TypeSessionCompleted: StatusCompleted,
			TypeSessionCancelled: StatusCancelled,
			TypeSessionFaulted:   StatusFaulted,
		}[event.Type()]
		var o Outcome
		if err := json.Unmarshal(event.Payload(), &o); err == nil {
			summary.Weight = o.Weight
			summary.Delivered = o.Delivered
			summary.Pulses = max(summary.Pulses, o.Pulses)
			summary.Reason = o.Reason
		}
		p.addToHistoryLocked(summary)
	}
}

func (p *FeedHistoryProjection) addToHistoryLocked(summary *SessionSummary) {
	for _, h := range p.history {
		if h.SessionID == summary.SessionID {
			return
		}
	}
	p.history = append([]*SessionSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops ended sessions that fell out of the bounded history.
// Caller must hold p.mu (write lock).
func (p *FeedHistoryProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.SessionID] = struct{}{}
	}
	for id, summary := range p.sessions {
		if summary.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.sessions, id)
		}
	}
}

// GetHistory returns copies of ended sessions, newest first.
func (p *FeedHistoryProjection) GetHistory() []SessionSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]SessionSummary, len(p.history))
	for i, h := range p.history {
		result[i] = *h
	}
	return result
}

// GetSession returns the summary for a specific session.
func (p *FeedHistoryProjection) GetSession(sessionID string) (SessionSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.sessions[sessionID]
	if !exists {
		return SessionSummary{}, false
	}
	return *summary, true
}

// LastFed returns the most recent completed session for subject.
func (p *FeedHistoryProjection) LastFed(subject string) (SessionSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, h := range p.history {
		if h.Subject == subject && h.Status == StatusCompleted {
			return *h, true
		}
	}
	return SessionSummary{}, false
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *FeedHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
