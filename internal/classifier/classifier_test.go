package classifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

var frame = camera.Frame{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, ContentType: "image/jpeg"}

func TestRange(t *testing.T) {
	r := RangeFromConfig(config.Default().Classifier)

	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{"dog, confident", Result{CategoryID: 207, Confidence: 0.9}, true},
		{"lower bound", Result{CategoryID: 151, Confidence: 0.71}, true},
		{"upper bound", Result{CategoryID: 268, Confidence: 0.71}, true},
		{"threshold is exclusive", Result{CategoryID: 207, Confidence: 0.7}, false},
		{"below range", Result{CategoryID: 150, Confidence: 0.99}, false},
		{"above range", Result{CategoryID: 269, Confidence: 0.99}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Accept(tt.res))
		})
	}
}

func TestLabels(t *testing.T) {
	l, err := ParseLabels(strings.NewReader("tench\ngoldfish\n  great white shark \n"))
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, "great white shark", l.Name(2))
	assert.Equal(t, "unknown", l.Name(3))
	assert.Equal(t, "unknown", l.Name(-1))
	assert.Equal(t, "goldfish (87%)", l.Describe(Result{CategoryID: 1, Confidence: 0.875}))

	var nilLabels *Labels
	assert.Equal(t, "unknown", nilLabels.Name(0))
}

func TestLoadLabels(t *testing.T) {
	l, err := LoadLabels("")
	require.NoError(t, err)
	assert.Zero(t, l.Len())

	_, err = LoadLabels("/nonexistent/imagenet_classes.txt")
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func inferenceServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, frame.Data, data)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClassifier_ClassID(t *testing.T) {
	srv := inferenceServer(t, http.StatusOK, map[string]any{"class_id": 2, "confidence": 0.93})
	labels, _ := ParseLabels(strings.NewReader("a\nb\nbeagle\n"))

	res, err := NewHTTPClassifier(srv.URL, time.Second, labels).Classify(t.Context(), frame)
	require.NoError(t, err)
	assert.Equal(t, Result{CategoryID: 2, Confidence: 0.93, Label: "beagle"}, res)
}

func TestHTTPClassifier_ClassIDZeroIsValid(t *testing.T) {
	srv := inferenceServer(t, http.StatusOK, map[string]any{"class_id": 0, "confidence": 0.5})

	res, err := NewHTTPClassifier(srv.URL, time.Second, nil).Classify(t.Context(), frame)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CategoryID)
}

func TestHTTPClassifier_ProbabilitiesArgmax(t *testing.T) {
	srv := inferenceServer(t, http.StatusOK, map[string]any{"probabilities": []float64{0.1, 0.05, 0.8, 0.05}})

	res, err := NewHTTPClassifier(srv.URL, time.Second, nil).Classify(t.Context(), frame)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CategoryID)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
}

func TestHTTPClassifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{"server error", http.StatusInternalServerError, map[string]any{"error": "boom"}},
		{"reported failure", http.StatusOK, map[string]any{"error": "model not loaded"}},
		{"no prediction", http.StatusOK, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := inferenceServer(t, tt.status, tt.body)
			_, err := NewHTTPClassifier(srv.URL, time.Second, nil).Classify(t.Context(), frame)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryClassifier))
		})
	}
}

func TestHTTPClassifier_EmptyFrame(t *testing.T) {
	_, err := NewHTTPClassifier("http://unused", time.Second, nil).Classify(t.Context(), camera.Frame{})
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
