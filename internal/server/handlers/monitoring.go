package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/server/responses"
	"git.home.luguber.info/inful/feeder/internal/state"
	"git.home.luguber.info/inful/feeder/internal/version"
)

// MonitoringRuntime defines the daemon methods needed by monitoring handlers.
type MonitoringRuntime interface {
	Snapshot() state.Snapshot
	StartTime() time.Time
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	runtime      MonitoringRuntime
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new monitoring handlers instance.
func NewMonitoringHandlers(runtime MonitoringRuntime) *MonitoringHandlers {
	return &MonitoringHandlers{
		runtime:      runtime,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck reports liveness. A missing weight reading degrades the
// status but keeps a 200 so the process is not restarted for a loose wire.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.runtime.Snapshot()
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(h.runtime.StartTime()).Seconds(),
		Running:   snap.Running,
		Feeding:   snap.Feeding,
		HasWeight: snap.HasWeight,
	}
	if !snap.HasWeight || snap.Degraded {
		health.Status = "degraded"
	}
	respond(w, r, h.errorAdapter, http.StatusOK, health)
}
