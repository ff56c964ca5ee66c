package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeySessionID  = "session_id"
	KeyState      = "state"
	KeyTargetKG   = "target_kg"
	KeyWeightKG   = "weight_kg"
	KeyMissingKG  = "missing_kg"
	KeyPulse      = "pulse"
	KeyCategory   = "category"
	KeyConfidence = "confidence"
	KeySubject    = "subject"
	KeyComponent  = "component"
	KeyJob        = "job"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"

	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func SessionID(id string) slog.Attr         { return slog.String(KeySessionID, id) }
func State(s string) slog.Attr              { return slog.String(KeyState, s) }
func TargetKG(kg float64) slog.Attr         { return slog.Float64(KeyTargetKG, kg) }
func WeightKG(kg float64) slog.Attr         { return slog.Float64(KeyWeightKG, kg) }
func MissingKG(kg float64) slog.Attr        { return slog.Float64(KeyMissingKG, kg) }
func PulseDuration(d time.Duration) slog.Attr { return slog.Duration(KeyPulse, d) }
func Category(id int) slog.Attr             { return slog.Int(KeyCategory, id) }
func Confidence(p float64) slog.Attr        { return slog.Float64(KeyConfidence, p) }
func Subject(name string) slog.Attr         { return slog.String(KeySubject, name) }
func Component(name string) slog.Attr       { return slog.String(KeyComponent, name) }
func Job(name string) slog.Attr             { return slog.String(KeyJob, name) }
func DurationMS(ms float64) slog.Attr       { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr             { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr               { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr             { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr         { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr      { return slog.String(KeyRemoteAddr, addr) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
