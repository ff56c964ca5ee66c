package helpers

import (
	"context"
	"slices"
	"sync"
)

// Gate call names recorded by RecordingGate.
const (
	CallOpen  = "open"
	CallClose = "close"
	CallIdle  = "idle"
)

// RecordingGate is an in-memory actuator that records every call in order.
// Errors can be injected per call; OnCall runs after each call is recorded.
type RecordingGate struct {
	mu       sync.Mutex
	calls    []string
	open     bool
	OpenErr  error
	CloseErr error
	IdleErr  error
	OnCall   func(call string)
}

func (g *RecordingGate) Open(context.Context) error {
	return g.record(CallOpen, g.OpenErr, true)
}

func (g *RecordingGate) Close(context.Context) error {
	return g.record(CallClose, g.CloseErr, false)
}

func (g *RecordingGate) Idle(context.Context) error {
	g.mu.Lock()
	g.calls = append(g.calls, CallIdle)
	err, hook := g.IdleErr, g.OnCall
	g.mu.Unlock()
	if hook != nil {
		hook(CallIdle)
	}
	return err
}

func (g *RecordingGate) record(call string, err error, open bool) error {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	if err == nil {
		g.open = open
	}
	hook := g.OnCall
	g.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return err
}

// Calls returns a copy of the recorded call sequence.
func (g *RecordingGate) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// IsOpen reports whether the last successful command left the gate open.
func (g *RecordingGate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Count returns how many times call was recorded.
func (g *RecordingGate) Count(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}
