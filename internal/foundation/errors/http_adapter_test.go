package errors

import (
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation", ValidationError("bad weight").Build(), http.StatusBadRequest},
		{"config", ConfigError("uncalibrated").Build(), http.StatusBadRequest},
		{"not found", NotFoundError("no pet").Build(), http.StatusNotFound},
		{"concurrency", ConcurrencyError("busy").Build(), http.StatusConflict},
		{"classifier", ClassifierError("inference down").Build(), http.StatusBadGateway},
		{"sensor", SensorError("no reading").Build(), http.StatusServiceUnavailable},
		{"store", StoreError("locked").Build(), http.StatusInternalServerError},
		{"unclassified", stdErrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.StatusCodeFor(tt.err); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/save_pet", nil)

	adapter.WriteErrorResponse(rec, req, ClassifierError("inference down").WithContext("endpoint", "http://infer").Build())

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	var body HTTPErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "inference down" || body.Code != "classifier" || !body.Retryable {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Details["endpoint"] != "http://infer" {
		t.Errorf("expected endpoint detail, got %v", body.Details)
	}
}
