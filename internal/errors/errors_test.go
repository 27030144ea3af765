package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err  *ProcessingError
		want int
	}{
		{NewValidationError("bad input", nil), http.StatusBadRequest},
		{NewAuthError("missing key"), http.StatusUnauthorized},
		{NewNotReadyError("loading", "50%"), http.StatusServiceUnavailable},
		{NewUpstreamError("gemini", nil), http.StatusBadGateway},
		{NewExtractionError("task-1", "no text", nil), http.StatusUnprocessableEntity},
		{NewTimeoutError("task-1", "extract", 0), http.StatusGatewayTimeout},
		{NewConflictError("already indexed"), http.StatusConflict},
		{NewInternalError("boom", nil), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.err.StatusCode(); got != c.want {
			t.Errorf("%s.StatusCode() = %d, want %d", c.err.Code, got, c.want)
		}
	}
}

func TestErrorIncludesCause(t *testing.T) {
	cause := errors.New("underlying failure")
	err := NewUpstreamError("gemini", cause)
	if got := err.Error(); got == "" {
		t.Fatalf("expected a non-empty error string")
	}
	if !errors.Is(err.Unwrap(), cause) {
		t.Fatalf("expected Unwrap to expose the cause")
	}
}

func TestToMapIncludesDetailsAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageFailedError("task-1", cause)
	m := err.ToMap()
	if m["error_code"] != string(ErrorStorageFailed) {
		t.Fatalf("expected error_code %q, got %v", ErrorStorageFailed, m["error_code"])
	}
	if m["cause"] != cause.Error() {
		t.Fatalf("expected cause %q, got %v", cause.Error(), m["cause"])
	}
}

func TestToMapMergesDetails(t *testing.T) {
	err := NewNotReadyError("loading", "75%")
	m := err.ToMap()
	if m["loadingProgress"] != "75%" {
		t.Fatalf("expected loadingProgress detail to be merged into the map, got %v", m["loadingProgress"])
	}
}
