package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("missing mass").Build(), 2},
		{"sensor", SensorError("timeout").Build(), 4},
		{"wrapped actuator", fmt.Errorf("flow test: %w", ActuatorError("pwm").Build()), 4},
		{"config", ConfigError("bad yaml").Build(), 7},
		{"store", StoreError("locked").Build(), 9},
		{"daemon", DaemonError("already running").Build(), 12},
		{"unclassified", stdErrors.New("unknown"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	verbose := NewCLIErrorAdapter(true, nil)
	internal := InternalError("nil gate").Build()

	if got := quiet.FormatError(internal); !strings.Contains(got, "use -v") {
		t.Errorf("expected hint for internal error, got %q", got)
	}
	if got := verbose.FormatError(internal); !strings.Contains(got, "nil gate") {
		t.Errorf("expected verbose message, got %q", got)
	}
	if got := quiet.FormatError(ConfigError("reference_factor must be > 1").Build()); !strings.Contains(got, "reference_factor") {
		t.Errorf("user-facing errors should be shown in full, got %q", got)
	}
	if got := quiet.FormatError(nil); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
}
