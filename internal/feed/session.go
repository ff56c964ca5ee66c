package feed

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one dispensing attempt for one target.
type Session struct {
	ID        string
	Subject   string
	Target    float64
	StartedAt time.Time

	mu         sync.Mutex
	state      State
	sampled    bool
	initial    float64
	latest     float64
	pulses     []time.Duration
	reason     string
	err        error
	endedAt    time.Time
	terminated chan struct{}
	done       chan struct{}
}

func newSession(target float64, subject string, now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Subject:    subject,
		Target:     target,
		StartedAt:  now,
		state:      Idle,
		terminated: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		s.state = st
	}
}

func (s *Session) observe(kg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sampled {
		s.initial = kg
		s.sampled = true
	}
	s.latest = kg
}

func (s *Session) addPulse(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulses = append(s.pulses, d)
}

func (s *Session) terminate(st State, reason string, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = st
	s.reason = reason
	s.err = err
	s.endedAt = at
	close(s.terminated)
}

// Pulses returns the open time of every pulse so far.
func (s *Session) Pulses() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.pulses)
}

// LastWeight returns the freshest reading taken by the session.
func (s *Session) LastWeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Delivered is the best-effort weight gained since the first reading.
func (s *Session) Delivered() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(0, s.latest-s.initial)
}

// Reason is the human-readable cause of the terminal state.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err is the fault that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Duration is the time from start to the terminal state, or zero while live.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedAt.IsZero() {
		return 0
	}
	return s.endedAt.Sub(s.StartedAt)
}

// Terminated is closed when the session reaches a terminal state.
func (s *Session) Terminated() <-chan struct{} { return s.terminated }

// Done is closed after the cooldown, when the slot has been released.
func (s *Session) Done() <-chan struct{} { return s.done }
