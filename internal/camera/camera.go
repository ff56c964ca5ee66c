// Package camera captures still frames for the classifier and the live view.
package camera

import (
	"bytes"
	"context"
	"time"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// Frame is one encoded still image.
type Frame struct {
	Data        []byte
	ContentType string
	At          time.Time
	Source      string
}

// Source produces frames on demand.
type Source interface {
	Capture(ctx context.Context) (Frame, error)
}

// ErrNoFrame means the source has not produced an image yet.
var ErrNoFrame = errors.CameraError("no frame available").Build()

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// CompleteJPEG reports whether data starts and ends with the JPEG markers,
// i.e. the writer has finished the file.
func CompleteJPEG(data []byte) bool {
	return len(data) >= 4 && bytes.HasPrefix(data, jpegSOI) && bytes.HasSuffix(bytes.TrimRight(data, "\x00"), jpegEOI)
}

// Open builds the configured source. It returns a nil Source when the camera
// is disabled. stop is never nil.
func Open(ctx context.Context, cfg config.CameraConfig) (Source, func() error, error) {
	stop := func() error { return nil }
	switch cfg.Source {
	case config.CameraDirectory:
		dir, err := NewDirectorySource(cfg.Directory)
		if err != nil {
			return nil, stop, err
		}
		if err := dir.Start(ctx); err != nil {
			_ = dir.Stop()
			return nil, stop, err
		}
		return dir, dir.Stop, nil
	case config.CameraHTTP:
		return NewHTTPSource(cfg.URL, cfg.Timeout), stop, nil
	default:
		return nil, stop, nil
	}
}
