package camera

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

const maxFrameBytes = 10 << 20

// HTTPSource fetches a snapshot URL, e.g. an MJPEG streamer's ?action=snapshot.
type HTTPSource struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewHTTPSource creates a snapshot fetcher with a per-request timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}, now: time.Now}
}

func (s *HTTPSource) Capture(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, errors.ConfigError("invalid snapshot URL").WithCause(err).WithContext("url", s.url).Build()
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Frame{}, errors.CameraError("snapshot request failed").WithCause(err).WithContext("url", s.url).Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, errors.CameraError("snapshot request returned an error status").
			WithContext("url", s.url).WithContext("status", resp.StatusCode).Build()
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return Frame{}, errors.CameraError("failed to read snapshot").WithCause(err).Build()
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(data)
	}
	if !strings.HasPrefix(ct, "image/") {
		return Frame{}, errors.CameraError("snapshot is not an image").WithContext("content_type", ct).Build()
	}
	return Frame{Data: data, ContentType: ct, At: s.now(), Source: s.url}, nil
}
