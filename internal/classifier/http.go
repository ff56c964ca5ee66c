package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// HTTPClassifier posts the encoded frame to an inference endpoint. The
// response is either {"class_id": N, "confidence": p} or
// {"probabilities": [...]}, in which case the argmax wins.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
	labels   *Labels
}

// NewHTTPClassifier creates a client. labels may be nil.
func NewHTTPClassifier(endpoint string, timeout time.Duration, labels *Labels) *HTTPClassifier {
	return &HTTPClassifier{endpoint: endpoint, client: &http.Client{Timeout: timeout}, labels: labels}
}

type inferenceResponse struct {
	ClassID       *int      `json:"class_id"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
	Error         string    `json:"error"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, f camera.Frame) (Result, error) {
	if len(f.Data) == 0 {
		return Result{}, errors.ValidationError("frame is empty").Build()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(f.Data))
	if err != nil {
		return Result{}, errors.ConfigError("invalid classifier endpoint").WithCause(err).WithContext("endpoint", c.endpoint).Build()
	}
	ct := f.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	req.Header.Set("Content-Type", ct)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, errors.ClassifierError("inference request failed").WithCause(err).WithContext("endpoint", c.endpoint).Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, errors.ClassifierError("failed to read inference response").WithCause(err).Build()
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.ClassifierError("inference endpoint returned an error status").
			WithContext("status", resp.StatusCode).WithContext("body", truncate(string(body), 200)).Build()
	}

	var out inferenceResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, errors.ClassifierError("malformed inference response").WithCause(err).Build()
	}
	res, err := decode(out)
	if err != nil {
		return Result{}, err
	}
	res.Label = c.labels.Name(res.CategoryID)
	return res, nil
}

func decode(out inferenceResponse) (Result, error) {
	switch {
	case out.Error != "":
		return Result{}, errors.ClassifierError("inference failed").WithContext("reason", out.Error).Build()
	case out.ClassID != nil:
		return Result{CategoryID: *out.ClassID, Confidence: out.Confidence}, nil
	case len(out.Probabilities) > 0:
		best := 0
		for i, p := range out.Probabilities {
			if p > out.Probabilities[best] {
				best = i
			}
		}
		return Result{CategoryID: best, Confidence: out.Probabilities[best]}, nil
	}
	return Result{}, errors.ClassifierError("inference response has no prediction").Build()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
