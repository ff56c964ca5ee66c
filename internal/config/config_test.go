package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1.0\"\n"))
	require.NoError(t, err)

	assert.Equal(t, DriverSim, cfg.Hardware.Driver)
	assert.InDelta(t, 0.05, cfg.Feed.FlowRate, 1e-9)
	assert.InDelta(t, 0.005, cfg.Feed.Tolerance, 1e-9)
	assert.Equal(t, 100*time.Millisecond, cfg.Feed.MinPulse)
	assert.Equal(t, 10*time.Second, cfg.Feed.MaxPulse)
	assert.Equal(t, 5*time.Second, cfg.Feed.SettleInterval)
	assert.Equal(t, 60*time.Second, cfg.Feed.Cooldown)
	assert.Equal(t, 50*time.Millisecond, cfg.Feed.PollInterval)
	assert.Equal(t, 3, cfg.Feed.SampleCount)
	assert.Equal(t, ReducerMean, cfg.Calibration.Reducer)
	assert.InDelta(t, 438760, cfg.Calibration.ReferenceFactor, 1e-9)
	assert.Equal(t, 151, cfg.Classifier.MinCategory)
	assert.Equal(t, 268, cfg.Classifier.MaxCategory)
	assert.Equal(t, ":5000", cfg.Daemon.HTTP.Address)
	assert.InDelta(t, cfg.Feed.FlowRate, cfg.Hardware.Sim.FlowRate, 1e-9)
	assert.Equal(t, RetryBackoffExponential, cfg.Retry.Backoff)
}

func TestParseCanonicalizesEnums(t *testing.T) {
	doc := `
version: "1.0"
hardware:
  driver: GPIO
calibration:
  reducer: " Median "
camera:
  source: dir
  directory: /tmp/frames
monitoring:
  logging:
    level: WARNING
    format: JSON
retry:
  backoff: constant
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, DriverPeriph, cfg.Hardware.Driver)
	assert.Equal(t, ReducerMedian, cfg.Calibration.Reducer)
	assert.Equal(t, CameraDirectory, cfg.Camera.Source)
	assert.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Monitoring.Logging.Format)
	assert.Equal(t, RetryBackoffFixed, cfg.Retry.Backoff)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("FEEDER_TEST_CLASSIFIER", "http://infer.local/classify")
	cfg, err := Parse([]byte("version: \"1.0\"\nclassifier:\n  endpoint: ${FEEDER_TEST_CLASSIFIER}\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://infer.local/classify", cfg.Classifier.Endpoint)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"wrong version", "version: \"2.0\"\n", ""},
		{"poll interval too long", "version: \"1.0\"\nfeed:\n  poll_interval: 250ms\n", "feed.poll_interval"},
		{"min above max pulse", "version: \"1.0\"\nfeed:\n  min_pulse: 20s\n", "feed.min_pulse"},
		{"too few session samples", "version: \"1.0\"\nfeed:\n  sample_count: 1\n", "feed.sample_count"},
		{"negative flow rate", "version: \"1.0\"\nfeed:\n  flow_rate: -0.1\n", "feed.flow_rate"},
		{"unknown reducer", "version: \"1.0\"\ncalibration:\n  reducer: mode\n", "calibration.reducer"},
		{"unknown driver", "version: \"1.0\"\nhardware:\n  driver: arduino\n", "hardware.driver"},
		{"directory camera without dir", "version: \"1.0\"\ncamera:\n  source: directory\n", "camera.directory"},
		{"threshold out of range", "version: \"1.0\"\nclassifier:\n  threshold: 1.5\n", "classifier.threshold"},
		{"mqtt without broker", "version: \"1.0\"\nevents:\n  mqtt:\n    enabled: true\n", "events.mqtt.broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig), "got %v", err)
			if tt.field != "" {
				c, ok := errors.AsClassified(err)
				require.True(t, ok)
				field, _ := c.Context().GetString("field")
				assert.Equal(t, tt.field, field)
			}
		})
	}
}

func TestUncalibratedFactorIsAccepted(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1.0\"\ncalibration:\n  reference_factor: 1\n"))
	require.NoError(t, err)
	assert.InDelta(t, 1, cfg.Calibration.ReferenceFactor, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeder.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err, "existing file must not be overwritten without force")
	require.NoError(t, Init(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "feeder calibrate")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPeriph, cfg.Hardware.Driver)
	assert.InDelta(t, 0.01, cfg.Calibration.ContainerOffset, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Feed.SettleInterval)
}

func TestLogLevelSlog(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.SlogLevel().String())
	assert.Equal(t, "INFO", LogLevel("bogus").SlogLevel().String())
}
