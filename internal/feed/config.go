package feed

import (
	"math"
	"time"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/retry"
)

// Config is the dispensing model. It is fixed for the life of a Controller.
type Config struct {
	FlowRate     float64 // kg/s while the gate is open
	Tolerance    float64 // kg; missing at or below this completes the session
	MinPulse     time.Duration
	MaxPulse     time.Duration
	Settle       time.Duration
	Cooldown     time.Duration
	PollInterval time.Duration
	SampleCount  int
	Retry        retry.Policy // sensor read retries inside a session
}

// ConfigFrom builds the controller configuration from the loaded file.
func ConfigFrom(f config.FeedConfig, r config.RetryConfig) Config {
	return Config{
		FlowRate:     f.FlowRate,
		Tolerance:    f.Tolerance,
		MinPulse:     f.MinPulse,
		MaxPulse:     f.MaxPulse,
		Settle:       f.SettleInterval,
		Cooldown:     f.Cooldown,
		PollInterval: f.PollInterval,
		SampleCount:  f.SampleCount,
		Retry:        retry.FromConfig(r),
	}
}

// DefaultConfig returns the configuration of an empty config file.
func DefaultConfig() Config {
	d := config.Default()
	return ConfigFrom(d.Feed, d.Retry)
}

// ComputeDuration converts a missing weight into a gate open time at
// flowRate, clamped to [minPulse, maxPulse] and rounded to the microsecond.
func ComputeDuration(missing, flowRate float64, minPulse, maxPulse time.Duration) time.Duration {
	seconds := missing / flowRate
	switch {
	case !(seconds >= minPulse.Seconds()): // also catches NaN
		return minPulse
	case seconds >= maxPulse.Seconds():
		return maxPulse
	}
	d := time.Duration(math.Round(seconds*1e6)) * time.Microsecond
	return min(max(d, minPulse), maxPulse)
}
