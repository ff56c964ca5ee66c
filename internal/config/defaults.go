package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/feeder/internal/foundation/normalization"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []DefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
// Feed defaults run before hardware so the simulator can inherit the flow rate.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []DefaultApplier{
			&FeedDefaultApplier{},
			&HardwareDefaultApplier{},
			&CalibrationDefaultApplier{},
			&SensingDefaultApplier{},
			&PerceptionDefaultApplier{},
			&StorageDefaultApplier{},
			&DaemonDefaultApplier{},
			&MonitoringDefaultApplier{},
			&RetryDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// canonical replaces a known spelling with its canonical value, applies def
// when empty, and leaves unknown input untouched for the validator to report.
func canonical[T ~string](n *normalization.Normalizer[T], v *T, def T) {
	if *v == "" {
		*v = def
		return
	}
	if parsed, err := n.Parse(string(*v)); err == nil && parsed != "" {
		*v = parsed
	}
}

func orDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}

func orFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func orInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func orString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// FeedDefaultApplier handles dispensing model defaults.
type FeedDefaultApplier struct{}

func (f *FeedDefaultApplier) Domain() string { return "feed" }

func (f *FeedDefaultApplier) ApplyDefaults(cfg *Config) error {
	orFloat(&cfg.Feed.Ratio, 0.02)
	orFloat(&cfg.Feed.FlowRate, 0.05)
	orFloat(&cfg.Feed.Tolerance, 0.005)
	orDuration(&cfg.Feed.MinPulse, 100*time.Millisecond)
	orDuration(&cfg.Feed.MaxPulse, 10*time.Second)
	orDuration(&cfg.Feed.SettleInterval, 5*time.Second)
	orDuration(&cfg.Feed.Cooldown, 60*time.Second)
	orDuration(&cfg.Feed.PollInterval, 50*time.Millisecond)
	orInt(&cfg.Feed.SampleCount, 3)
	return nil
}

// HardwareDefaultApplier handles pin and driver defaults (BCM numbering).
type HardwareDefaultApplier struct{}

func (h *HardwareDefaultApplier) Domain() string { return "hardware" }

func (h *HardwareDefaultApplier) ApplyDefaults(cfg *Config) error {
	hw := &cfg.Hardware
	canonical(driverNormalizer, &hw.Driver, DriverSim)
	orString(&hw.HX711.DataPin, "GPIO23")
	orString(&hw.HX711.ClockPin, "GPIO24")
	orInt(&hw.HX711.Gain, 128)
	orDuration(&hw.HX711.ReadTimeout, time.Second)
	orString(&hw.Servo.Pin, "GPIO18")
	orFloat(&hw.Servo.OpenAngle, 90)
	orDuration(&hw.Servo.IdleDelay, 500*time.Millisecond)
	orFloat(&hw.Sim.FlowRate, cfg.Feed.FlowRate)
	return nil
}

// CalibrationDefaultApplier handles load cell calibration defaults. The
// reference values match the stock 5kg cell; container offset defaults to zero.
type CalibrationDefaultApplier struct{}

func (c *CalibrationDefaultApplier) Domain() string { return "calibration" }

func (c *CalibrationDefaultApplier) ApplyDefaults(cfg *Config) error {
	orFloat(&cfg.Calibration.ZeroOffset, 392502)
	orFloat(&cfg.Calibration.ReferenceFactor, 438760)
	orInt(&cfg.Calibration.TareSamples, 30)
	canonical(reducerNormalizer, &cfg.Calibration.Reducer, ReducerMean)
	return nil
}

// SensingDefaultApplier handles passive loop cadence defaults.
type SensingDefaultApplier struct{}

func (s *SensingDefaultApplier) Domain() string { return "sensing" }

func (s *SensingDefaultApplier) ApplyDefaults(cfg *Config) error {
	orDuration(&cfg.Sensing.TickInterval, 100*time.Millisecond)
	orInt(&cfg.Sensing.WeightEvery, 3)
	orInt(&cfg.Sensing.FrameEvery, 1)
	orInt(&cfg.Sensing.ClassifyEvery, 5)
	return nil
}

// PerceptionDefaultApplier handles camera and classifier defaults.
type PerceptionDefaultApplier struct{}

func (p *PerceptionDefaultApplier) Domain() string { return "perception" }

func (p *PerceptionDefaultApplier) ApplyDefaults(cfg *Config) error {
	canonical(cameraSourceNormalizer, &cfg.Camera.Source, CameraNone)
	orDuration(&cfg.Camera.Timeout, 2*time.Second)
	orDuration(&cfg.Classifier.Timeout, 5*time.Second)
	orFloat(&cfg.Classifier.Threshold, 0.7)
	orInt(&cfg.Classifier.MinCategory, 151)
	orInt(&cfg.Classifier.MaxCategory, 268)
	return nil
}

// StorageDefaultApplier handles profile and event database defaults.
type StorageDefaultApplier struct{}

func (s *StorageDefaultApplier) Domain() string { return "storage" }

func (s *StorageDefaultApplier) ApplyDefaults(cfg *Config) error {
	orString(&cfg.Profiles.Database, "pets.db")
	ev := &cfg.Events
	orString(&ev.Database, "feeder-events.db")
	orDuration(&ev.Retention, 30*24*time.Hour)
	orDuration(&ev.StatusInterval, time.Minute)
	orInt(&ev.HistorySize, 100)
	orString(&ev.NATS.URL, "nats://localhost:4222")
	orString(&ev.NATS.Stream, "FEEDER")
	orString(&ev.NATS.Subject, "feeder.events")
	orString(&ev.MQTT.ClientID, "feeder")
	orString(&ev.MQTT.Topic, "feeder/events")
	orString(&ev.Kafka.Topic, "feeder-events")
	return nil
}

// DaemonDefaultApplier handles control surface defaults.
type DaemonDefaultApplier struct{}

func (d *DaemonDefaultApplier) Domain() string { return "daemon" }

func (d *DaemonDefaultApplier) ApplyDefaults(cfg *Config) error {
	orString(&cfg.Daemon.HTTP.Address, ":5000")
	orDuration(&cfg.Daemon.HTTP.ShutdownTimeout, 10*time.Second)
	if len(cfg.Daemon.CORSOrigins) == 0 {
		cfg.Daemon.CORSOrigins = []string{"*"}
	}
	return nil
}

// MonitoringDefaultApplier handles Monitoring configuration defaults.
type MonitoringDefaultApplier struct{}

func (m *MonitoringDefaultApplier) Domain() string { return "monitoring" }

func (m *MonitoringDefaultApplier) ApplyDefaults(cfg *Config) error {
	orString(&cfg.Monitoring.Metrics.Path, "/metrics")
	orString(&cfg.Monitoring.Health.Path, "/health")
	canonical(logLevelNormalizer, &cfg.Monitoring.Logging.Level, LogLevelInfo)
	canonical(logFormatNormalizer, &cfg.Monitoring.Logging.Format, LogFormatText)
	return nil
}

// RetryDefaultApplier handles sensor retry defaults.
type RetryDefaultApplier struct{}

func (r *RetryDefaultApplier) Domain() string { return "retry" }

func (r *RetryDefaultApplier) ApplyDefaults(cfg *Config) error {
	canonical(retryBackoffNormalizer, &cfg.Retry.Backoff, RetryBackoffExponential)
	orDuration(&cfg.Retry.Initial, 100*time.Millisecond)
	orDuration(&cfg.Retry.Max, time.Second)
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	return nil
}
