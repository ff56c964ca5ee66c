package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/server/responses"
	"git.home.luguber.info/inful/feeder/internal/state"
)

const placeholder = "---"

// ControlRuntime is what the dashboard needs from the daemon.
type ControlRuntime interface {
	Snapshot() state.Snapshot
	SetArmed(armed bool)
}

// ControlHandlers serve the dashboard poll and the arm switch.
type ControlHandlers struct {
	runtime      ControlRuntime
	errorAdapter *errors.HTTPErrorAdapter
}

// NewControlHandlers creates the control handlers.
func NewControlHandlers(runtime ControlRuntime) *ControlHandlers {
	return &ControlHandlers{runtime: runtime, errorAdapter: errors.NewHTTPErrorAdapter(slog.Default())}
}

// HandleStatus returns the dashboard status document.
func (h *ControlHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, r, h.errorAdapter, http.StatusOK, StatusFromSnapshot(h.runtime.Snapshot()))
}

// StatusFromSnapshot formats a snapshot for the dashboard.
func StatusFromSnapshot(s state.Snapshot) responses.StatusResponse {
	out := responses.StatusResponse{
		Running:           s.Running,
		Feeding:           s.Feeding,
		Degraded:          s.Degraded,
		Msg:               s.Status,
		Weight:            placeholder,
		PetName:           placeholder,
		PetWeight:         placeholder,
		BreedInfo:         placeholder,
		TargetFeed:        fmt.Sprintf("%.3f", s.Detection.Target),
		MissingWeight:     fmt.Sprintf("%.3f", s.Missing),
		SupplementSeconds: fmt.Sprintf("%.1f", s.Seconds),
	}
	if s.HasWeight {
		out.Weight = fmt.Sprintf("%.3f", s.Weight)
	}
	if d := s.Detection; d.Subject != "" {
		out.PetName = d.Subject
		if d.Label != "" {
			out.BreedInfo = d.Label
		}
		if d.Weight > 0 {
			out.PetWeight = fmt.Sprintf("%v kg", d.Weight)
		}
	}
	return out
}

// HandleSetSystem arms or disarms from the form field action=start|stop.
func (h *ControlHandlers) HandleSetSystem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("invalid form body").WithCause(err).Build())
		return
	}
	var armed bool
	switch action := strings.ToLower(strings.TrimSpace(r.FormValue("action"))); action {
	case "start":
		armed = true
	case "stop":
		armed = false
	default:
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("action must be start or stop").
			WithContext("action", action).Build())
		return
	}
	h.runtime.SetArmed(armed)
	respond(w, r, h.errorAdapter, http.StatusOK, responses.SetSystemResponse{Status: "ok", Running: armed})
}

// HandleArmed is the JSON form of HandleSetSystem: {"armed": bool}.
func (h *ControlHandlers) HandleArmed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Armed *bool `json:"armed"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&body); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("invalid JSON body").WithCause(err).Build())
		return
	}
	if body.Armed == nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.ValidationError("armed is required").Build())
		return
	}
	h.runtime.SetArmed(*body.Armed)
	respond(w, r, h.errorAdapter, http.StatusOK, responses.SetSystemResponse{Status: "ok", Running: *body.Armed})
}
