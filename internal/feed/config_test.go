package feed

import (
	"math"
	"testing"
	"time"
)

func TestComputeDuration(t *testing.T) {
	const flow = 0.05
	lo, hi := 100*time.Millisecond, 10*time.Second

	tests := []struct {
		name    string
		missing float64
		want    time.Duration
	}{
		{"within bounds", 0.40, 8 * time.Second},
		{"small target used as-is", 0.01, 200 * time.Millisecond},
		{"clamped to max", 5.0, 10 * time.Second},
		{"clamped to min", 0.001, 100 * time.Millisecond},
		{"exactly max", 0.5, 10 * time.Second},
		{"nan", math.NaN(), 100 * time.Millisecond},
		{"infinite", math.Inf(1), 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeDuration(tt.missing, flow, lo, hi); got != tt.want {
				t.Errorf("ComputeDuration(%v) = %v, want %v", tt.missing, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.FlowRate != 0.05 || c.Tolerance != 0.005 {
		t.Fatalf("unexpected dispensing model: %+v", c)
	}
	if c.MinPulse != 100*time.Millisecond || c.MaxPulse != 10*time.Second {
		t.Fatalf("unexpected pulse bounds: %v..%v", c.MinPulse, c.MaxPulse)
	}
	if c.PollInterval > 100*time.Millisecond {
		t.Fatalf("poll interval too coarse: %v", c.PollInterval)
	}
	if c.Retry.MaxRetries != 3 {
		t.Fatalf("expected 3 sensor retries, got %d", c.Retry.MaxRetries)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{Completed, Cancelled, Faulted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{Idle, Dispensing, Settling} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
