package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// CurrentVersion is the only configuration schema version accepted by Load.
const CurrentVersion = "1.0"

// Config is the feeder daemon configuration. It is read once at startup.
type Config struct {
	Version     string            `yaml:"version"`
	Hardware    HardwareConfig    `yaml:"hardware"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Feed        FeedConfig        `yaml:"feed"`
	Sensing     SensingConfig     `yaml:"sensing"`
	Camera      CameraConfig      `yaml:"camera"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Profiles    ProfilesConfig    `yaml:"profiles"`
	Daemon      DaemonConfig      `yaml:"daemon"`
	Events      EventsConfig      `yaml:"events"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Retry       RetryConfig       `yaml:"retry"`
}

// HardwareConfig selects the hardware driver and its pin assignment.
type HardwareConfig struct {
	Driver HardwareDriver `yaml:"driver"` // periph|sim
	HX711  HX711Config    `yaml:"hx711"`
	Servo  ServoConfig    `yaml:"servo"`
	Sim    SimConfig      `yaml:"sim"`
}

// HX711Config holds the load cell amplifier wiring.
type HX711Config struct {
	DataPin     string        `yaml:"data_pin"`
	ClockPin    string        `yaml:"clock_pin"`
	Gain        int           `yaml:"gain"` // 128|64 (channel A) or 32 (channel B)
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ServoConfig holds the gate servo wiring and geometry.
type ServoConfig struct {
	Pin        string        `yaml:"pin"`
	OpenAngle  float64       `yaml:"open_angle"`
	CloseAngle float64       `yaml:"close_angle"`
	IdleDelay  time.Duration `yaml:"idle_delay"` // hold time before the PWM signal is cut
}

// SimConfig tunes the simulated scale and gate.
type SimConfig struct {
	InitialWeight float64 `yaml:"initial_weight"` // kg already in the bowl
	FlowRate      float64 `yaml:"flow_rate"`      // kg/s while open; defaults to feed.flow_rate
}

// CalibrationConfig holds the fixed load cell calibration.
type CalibrationConfig struct {
	ZeroOffset      float64 `yaml:"zero_offset"`
	ReferenceFactor float64 `yaml:"reference_factor"`
	ContainerOffset float64 `yaml:"container_offset"` // bowl weight in kg
	TareSamples     int     `yaml:"tare_samples"`
	Reducer         Reducer `yaml:"reducer"` // mean|median
}

// FeedConfig holds the dispensing model.
type FeedConfig struct {
	Ratio          float64       `yaml:"ratio"`     // target = body weight * ratio
	FlowRate       float64       `yaml:"flow_rate"` // kg per second of open gate
	Tolerance      float64       `yaml:"tolerance"`
	MinPulse       time.Duration `yaml:"min_pulse"`
	MaxPulse       time.Duration `yaml:"max_pulse"`
	SettleInterval time.Duration `yaml:"settle_interval"`
	Cooldown       time.Duration `yaml:"cooldown"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SampleCount    int           `yaml:"sample_count"`
}

// SensingConfig holds the passive sensing loop cadence.
type SensingConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	WeightEvery   int           `yaml:"weight_every"`
	FrameEvery    int           `yaml:"frame_every"`
	ClassifyEvery int           `yaml:"classify_every"`
}

// CameraConfig selects the frame source.
type CameraConfig struct {
	Source    CameraSource  `yaml:"source"` // directory|http|none
	Directory string        `yaml:"directory"`
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ClassifierConfig configures the remote image classifier.
type ClassifierConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
	Threshold   float64       `yaml:"threshold"`
	MinCategory int           `yaml:"min_category"`
	MaxCategory int           `yaml:"max_category"`
	LabelsFile  string        `yaml:"labels_file"`
}

// ProfilesConfig locates the pet profile database.
type ProfilesConfig struct {
	Database string `yaml:"database"`
}

// DaemonConfig holds the control surface settings.
type DaemonConfig struct {
	HTTP        HTTPConfig `yaml:"http"`
	CORSOrigins []string   `yaml:"cors_origins"`
	ArmOnStart  bool       `yaml:"arm_on_start"`
}

// HTTPConfig represents the control surface listener.
type HTTPConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// EventsConfig configures feed history persistence and broker fan-out.
type EventsConfig struct {
	Database       string        `yaml:"database"`
	Retention      time.Duration `yaml:"retention"`
	StatusInterval time.Duration `yaml:"status_interval"`
	HistorySize    int           `yaml:"history_size"`
	NATS           NATSConfig    `yaml:"nats"`
	MQTT           MQTTConfig    `yaml:"mqtt"`
	Kafka          KafkaConfig   `yaml:"kafka"`
}

// NATSConfig enables publishing to a JetStream stream.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"` // prefix; event type is appended
}

// MQTTConfig enables publishing to an MQTT broker.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"` // prefix; event type is appended
	QoS      byte   `yaml:"qos"`
}

// KafkaConfig enables publishing to a Kafka topic.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MonitoringConfig represents monitoring and observability configuration.
type MonitoringConfig struct {
	Metrics MonitoringMetrics `yaml:"metrics"`
	Health  MonitoringHealth  `yaml:"health"`
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringMetrics represents metrics configuration.
type MonitoringMetrics struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MonitoringHealth represents health check configuration.
type MonitoringHealth struct {
	Path string `yaml:"path"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// RetryConfig governs sensor read retries inside a feed session.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// Load reads, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not loaded: %v\n", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Build()
	}
	return Parse(data)
}

// Parse decodes a YAML document after environment expansion, then applies
// defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).Build()
	}
	if err := NewDefaultApplier().ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration, as if an empty version 1.0
// document had been loaded.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	_ = NewDefaultApplier().ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Default()
	example.Hardware.Driver = DriverPeriph
	example.Calibration.ContainerOffset = 0.01
	example.Camera.Source = CameraDirectory
	example.Camera.Directory = "/run/feeder/frames"
	example.Classifier.Endpoint = "http://127.0.0.1:8501/v1/classify"
	example.Classifier.LabelsFile = "imagenet_classes.txt"
	example.Events.NATS.URL = "${NATS_URL}"
	example.Events.MQTT.Broker = "tcp://localhost:1883"
	example.Events.Kafka.Brokers = []string{"localhost:9092"}

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# feeder configuration\n# Calibrate the load cell with `feeder calibrate` and copy the printed values below.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
