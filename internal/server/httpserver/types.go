package httpserver

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/classifier"
	"git.home.luguber.info/inful/feeder/internal/eventstore"
	"git.home.luguber.info/inful/feeder/internal/profile"
	"git.home.luguber.info/inful/feeder/internal/state"
)

// Runtime is the minimal interface required by the control surface handlers.
// It intentionally matches the interfaces in internal/server/handlers.
type Runtime interface {
	Snapshot() state.Snapshot
	SetArmed(armed bool)
	StartTime() time.Time
}

// Options carries the components the handlers read from.
type Options struct {
	Profiles   profile.Store
	Classifier classifier.Classifier // nil disables /analyze_photo
	Labels     *classifier.Labels
	Accept     classifier.Range
	Frames     *camera.Buffer // nil disables /video_feed
	History    *eventstore.FeedHistoryProjection

	// Optional: Prometheus scrape endpoint, mounted at monitoring.metrics.path.
	PrometheusHandler http.Handler

	// FrameInterval paces the MJPEG stream; zero uses the handler default.
	FrameInterval time.Duration
}
