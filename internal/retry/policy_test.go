package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/feeder/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffExponential { t.Fatalf("expected exponential default mode got %s", p.Mode) }
	if p.Initial != 100*time.Millisecond { t.Fatalf("expected initial 100ms got %v", p.Initial) }
	if p.Max != time.Second { t.Fatalf("expected max 1s got %v", p.Max) }
	if p.MaxRetries != 3 { t.Fatalf("expected max retries 3 got %d", p.MaxRetries) }
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second { t.Fatalf("expected clamped initial 2s got %v", p.Initial) }
	if p.Mode != config.RetryBackoffFixed { t.Fatalf("expected fixed mode got %s", p.Mode) }
	if p.MaxRetries != 5 { t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries) }
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond { t.Fatalf("fixed attempt %d expected 100ms got %v", i, d) }
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	for attempt, want := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 250 * time.Millisecond} {
		if got := linear.Delay(attempt); got != want { t.Fatalf("linear attempt %d expected %v got %v", attempt, want, got) }
	}

	exp := NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	for attempt, want := range map[int]time.Duration{1: 50 * time.Millisecond, 2: 100 * time.Millisecond, 3: 160 * time.Millisecond, 64: 160 * time.Millisecond} {
		if got := exp.Delay(attempt); got != want { t.Fatalf("exp attempt %d expected %v got %v", attempt, want, got) }
	}
	if d := exp.Delay(0); d != 0 { t.Fatalf("attempt 0 expected 0 got %v", d) }
}

// TestValidate covers validation error paths.
func TestValidate(t *testing.T) {
	if err := (Policy{Initial: 0, Max: time.Second}).Validate(); err == nil { t.Fatalf("expected error for zero initial") }
	if err := (Policy{Initial: time.Second, Max: 0}).Validate(); err == nil { t.Fatalf("expected error for zero max") }
	if err := (Policy{Initial: time.Second, Max: time.Second, MaxRetries: -1}).Validate(); err == nil { t.Fatalf("expected error for negative retries") }
	if err := DefaultPolicy().Validate(); err != nil { t.Fatalf("unexpected validation error: %v", err) }
}

// TestUnknownModeFallsBack leaves mode default when unknown string supplied.
func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	if p.Mode != config.RetryBackoffExponential { t.Fatalf("unknown mode should fall back to exponential got %s", p.Mode) }
}

// TestDoRetriesTransient checks attempts, recorded delays and the give-up path.
func TestDoRetriesTransient(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, time.Second, 2)
	var waits []time.Duration
	wait := func(_ context.Context, d time.Duration) error { waits = append(waits, d); return nil }
	transient := errors.New("not ready")

	calls := 0
	err := p.Do(t.Context(), wait, nil, func(int) error {
		calls++
		if calls < 3 { return transient }
		return nil
	})
	if err != nil { t.Fatalf("expected success on third attempt, got %v", err) }
	if len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond { t.Fatalf("unexpected waits %v", waits) }

	calls = 0
	err = p.Do(t.Context(), wait, nil, func(int) error { calls++; return transient })
	if !errors.Is(err, transient) || calls != 3 { t.Fatalf("expected 3 attempts and transient error, got %d %v", calls, err) }
}

// TestDoStopsOnPermanentOrAbandonedWait covers the non-retry exits.
func TestDoStopsOnPermanentOrAbandonedWait(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	permanent := errors.New("wiring")
	calls := 0
	err := p.Do(t.Context(), func(context.Context, time.Duration) error { return nil },
		func(err error) bool { return !errors.Is(err, permanent) },
		func(int) error { calls++; return permanent })
	if calls != 1 || !errors.Is(err, permanent) { t.Fatalf("permanent error must not retry: %d %v", calls, err) }

	cancelled := errors.New("cancelled")
	err = p.Do(t.Context(), func(context.Context, time.Duration) error { return cancelled }, nil,
		func(int) error { return permanent })
	if !errors.Is(err, cancelled) { t.Fatalf("expected wait error, got %v", err) }
}
