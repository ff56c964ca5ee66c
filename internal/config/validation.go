package config

import (
	"time"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// MaxPollInterval bounds how long a feed session may go without checking for cancellation.
const MaxPollInterval = 100 * time.Millisecond

// MinFeedSampleCount is the fewest raw reads a feed session reduces per weight check.
const MinFeedSampleCount = 3

// ValidateConfig validates a defaulted configuration and returns the first problem found.
func ValidateConfig(cfg *Config) error {
	return newConfigurationValidator(cfg).validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	for _, step := range []func() error{
		cv.validateFeed,
		cv.validateHardware,
		cv.validateCalibration,
		cv.validateSensing,
		cv.validatePerception,
		cv.validateEvents,
		cv.validateMonitoring,
		cv.validateRetry,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field string, value any, message string) error {
	return errors.ConfigError(message).
		WithContext("field", field).
		WithContext("value", value).
		Build()
}

func (cv *configurationValidator) validateHardware() error {
	hw := cv.config.Hardware
	if !driverNormalizer.Valid(hw.Driver) {
		return invalid("hardware.driver", hw.Driver, "unknown hardware driver (allowed: periph|sim)")
	}
	switch hw.HX711.Gain {
	case 128, 64, 32:
	default:
		return invalid("hardware.hx711.gain", hw.HX711.Gain, "hx711 gain must be 128, 64 or 32")
	}
	if hw.Driver == DriverPeriph && (hw.HX711.DataPin == "" || hw.HX711.ClockPin == "" || hw.Servo.Pin == "") {
		return invalid("hardware", hw.Driver, "periph driver requires hx711 and servo pins")
	}
	for field, angle := range map[string]float64{
		"hardware.servo.open_angle":  hw.Servo.OpenAngle,
		"hardware.servo.close_angle": hw.Servo.CloseAngle,
	} {
		if angle < 0 || angle > 180 {
			return invalid(field, angle, "servo angle must be within 0..180 degrees")
		}
	}
	if hw.Servo.IdleDelay < 0 {
		return invalid("hardware.servo.idle_delay", hw.Servo.IdleDelay, "idle delay cannot be negative")
	}
	if hw.Sim.InitialWeight < 0 || hw.Sim.FlowRate <= 0 {
		return invalid("hardware.sim", hw.Sim, "simulator weight must be >= 0 and flow rate > 0")
	}
	return nil
}

// validateCalibration accepts reference_factor <= 1: the sensor then reports
// raw values flagged as degraded instead of refusing to start.
func (cv *configurationValidator) validateCalibration() error {
	c := cv.config.Calibration
	if !reducerNormalizer.Valid(c.Reducer) {
		return invalid("calibration.reducer", c.Reducer, "unknown reducer (allowed: mean|median)")
	}
	if c.TareSamples < 1 {
		return invalid("calibration.tare_samples", c.TareSamples, "tare_samples must be >= 1")
	}
	if c.ContainerOffset < 0 {
		return invalid("calibration.container_offset", c.ContainerOffset, "container_offset cannot be negative")
	}
	return nil
}

func (cv *configurationValidator) validateFeed() error {
	f := cv.config.Feed
	switch {
	case f.Ratio <= 0:
		return invalid("feed.ratio", f.Ratio, "feed ratio must be positive")
	case f.FlowRate <= 0:
		return invalid("feed.flow_rate", f.FlowRate, "flow rate must be positive")
	case f.Tolerance < 0:
		return invalid("feed.tolerance", f.Tolerance, "tolerance cannot be negative")
	case f.MinPulse <= 0:
		return invalid("feed.min_pulse", f.MinPulse, "min_pulse must be positive")
	case f.MinPulse > f.MaxPulse:
		return invalid("feed.min_pulse", f.MinPulse, "min_pulse must not exceed max_pulse")
	case f.SettleInterval < 0:
		return invalid("feed.settle_interval", f.SettleInterval, "settle_interval cannot be negative")
	case f.Cooldown < 0:
		return invalid("feed.cooldown", f.Cooldown, "cooldown cannot be negative")
	case f.PollInterval <= 0 || f.PollInterval > MaxPollInterval:
		return invalid("feed.poll_interval", f.PollInterval, "poll_interval must be within (0, 100ms]")
	case f.SampleCount < MinFeedSampleCount:
		return invalid("feed.sample_count", f.SampleCount, "sample_count must be >= 3")
	}
	return nil
}

func (cv *configurationValidator) validateSensing() error {
	s := cv.config.Sensing
	if s.TickInterval <= 0 {
		return invalid("sensing.tick_interval", s.TickInterval, "tick_interval must be positive")
	}
	if s.WeightEvery < 1 || s.FrameEvery < 1 || s.ClassifyEvery < 1 {
		return invalid("sensing", s, "weight_every, frame_every and classify_every must be >= 1")
	}
	return nil
}

func (cv *configurationValidator) validatePerception() error {
	cam := cv.config.Camera
	if !cameraSourceNormalizer.Valid(cam.Source) {
		return invalid("camera.source", cam.Source, "unknown camera source (allowed: none|directory|http)")
	}
	if cam.Source == CameraDirectory && cam.Directory == "" {
		return invalid("camera.directory", cam.Directory, "directory camera requires camera.directory")
	}
	if cam.Source == CameraHTTP && cam.URL == "" {
		return invalid("camera.url", cam.URL, "http camera requires camera.url")
	}
	cl := cv.config.Classifier
	if cl.Threshold < 0 || cl.Threshold >= 1 {
		return invalid("classifier.threshold", cl.Threshold, "threshold must be within [0, 1)")
	}
	if cl.MinCategory > cl.MaxCategory {
		return invalid("classifier.min_category", cl.MinCategory, "min_category must not exceed max_category")
	}
	return nil
}

func (cv *configurationValidator) validateEvents() error {
	ev := cv.config.Events
	if ev.Retention <= 0 || ev.StatusInterval <= 0 {
		return invalid("events", ev.Retention, "retention and status_interval must be positive")
	}
	if ev.HistorySize < 1 {
		return invalid("events.history_size", ev.HistorySize, "history_size must be >= 1")
	}
	if ev.MQTT.Enabled && ev.MQTT.Broker == "" {
		return invalid("events.mqtt.broker", ev.MQTT.Broker, "mqtt publisher requires a broker")
	}
	if ev.MQTT.QoS > 2 {
		return invalid("events.mqtt.qos", ev.MQTT.QoS, "mqtt qos must be 0, 1 or 2")
	}
	if ev.Kafka.Enabled && len(ev.Kafka.Brokers) == 0 {
		return invalid("events.kafka.brokers", ev.Kafka.Brokers, "kafka publisher requires at least one broker")
	}
	return nil
}

func (cv *configurationValidator) validateMonitoring() error {
	l := cv.config.Monitoring.Logging
	if !logLevelNormalizer.Valid(l.Level) {
		return invalid("monitoring.logging.level", l.Level, "unknown log level")
	}
	if !logFormatNormalizer.Valid(l.Format) {
		return invalid("monitoring.logging.format", l.Format, "unknown log format (allowed: text|json)")
	}
	return nil
}

func (cv *configurationValidator) validateRetry() error {
	r := cv.config.Retry
	if !retryBackoffNormalizer.Valid(r.Backoff) {
		return invalid("retry.backoff", r.Backoff, "unknown retry backoff (allowed: fixed|linear|exponential)")
	}
	if r.Max < r.Initial {
		return invalid("retry.max", r.Max, "retry max must be >= retry initial")
	}
	if r.MaxRetries < 0 {
		return invalid("retry.max_retries", r.MaxRetries, "max_retries cannot be negative")
	}
	return nil
}
