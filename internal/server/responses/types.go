// Package responses defines API response types used by the feeder control surface.
package responses

import (
	"time"

	"git.home.luguber.info/inful/feeder/internal/eventstore"
	"git.home.luguber.info/inful/feeder/internal/profile"
)

// StatusResponse is the dashboard poll payload. Numeric fields are
// preformatted strings so the page can render them verbatim.
type StatusResponse struct {
	Running           bool   `json:"running"`
	Feeding           bool   `json:"feeding"`
	Degraded          bool   `json:"degraded"`
	Msg               string `json:"msg"`
	Weight            string `json:"weight"`
	PetName           string `json:"pet_name"`
	PetWeight         string `json:"pet_weight"`
	BreedInfo         string `json:"breed_info"`
	TargetFeed        string `json:"target_feed"`
	MissingWeight     string `json:"missing_weight"`
	SupplementSeconds string `json:"supplement_seconds"`
}

// SetSystemResponse acknowledges an arm/disarm request.
type SetSystemResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// AnalyzeResponse is the result of classifying an uploaded photo.
type AnalyzeResponse struct {
	Success   bool    `json:"success"`
	BreedID   int     `json:"breed_id,omitempty"`
	BreedName string  `json:"breed_name,omitempty"`
	IsDog     bool    `json:"is_dog"`
	Score     float64 `json:"confidence,omitempty"`
	Msg       string  `json:"msg,omitempty"`
}

// SaveResponse acknowledges a profile registration.
type SaveResponse struct {
	Success bool             `json:"success"`
	Pet     *profile.Profile `json:"pet,omitempty"`
	Msg     string           `json:"msg,omitempty"`
}

// PetsResponse lists registered profiles.
type PetsResponse struct {
	Pets  []profile.Profile `json:"pets"`
	Count int               `json:"count"`
}

// HistoryResponse lists recent feed sessions, newest first.
type HistoryResponse struct {
	Sessions []eventstore.SessionSummary `json:"sessions"`
	Count    int                         `json:"count"`
}

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Running   bool      `json:"running"`
	Feeding   bool      `json:"feeding"`
	HasWeight bool      `json:"has_weight"`
}
