package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/logfields"
)

const frameBoundary = "frame"

// VideoHandlers stream the camera buffer as multipart MJPEG.
type VideoHandlers struct {
	frames       *camera.Buffer
	interval     time.Duration
	errorAdapter *errors.HTTPErrorAdapter
}

// NewVideoHandlers streams frames from buf, at most one per interval.
func NewVideoHandlers(buf *camera.Buffer, interval time.Duration) *VideoHandlers {
	if interval <= 0 {
		interval = 40 * time.Millisecond
	}
	return &VideoHandlers{frames: buf, interval: interval, errorAdapter: errors.NewHTTPErrorAdapter(slog.Default())}
}

// HandleVideoFeed writes each new frame as a multipart part until the client goes away.
func (h *VideoHandlers) HandleVideoFeed(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		h.errorAdapter.WriteErrorResponse(w, r, errors.CameraError("camera disabled").Build())
		return
	}
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+frameBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ctx := r.Context()
	var seq uint64
	for {
		frame, next, err := h.frames.Next(ctx, seq)
		if err != nil {
			return
		}
		seq = next
		ct := frame.ContentType
		if ct == "" {
			ct = "image/jpeg"
		}
		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", frameBoundary, ct, len(frame.Data)); err != nil {
			return
		}
		if _, err := w.Write(frame.Data); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			slog.Debug("Video feed flush failed", logfields.Error(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.interval):
		}
	}
}
