package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("therapy", "t-1"), http.StatusNotFound},
		{"unavailable", fmt.Errorf("assign: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{"validation", Invalid("name is required"), http.StatusBadRequest},
		{"conflict", Conflict("leave is %s", "APPROVED"), http.StatusConflict},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"storage fault", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPError_HidesStorageFaults(t *testing.T) {
	httpErr := HTTPError(errors.New("pq: relation does not exist"))
	if httpErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", httpErr.Code)
	}
	if httpErr.Message != "internal server error" {
		t.Errorf("expected generic message, got %v", httpErr.Message)
	}
	if httpErr.Internal == nil {
		t.Error("expected internal error to be kept for logging")
	}
}

func TestHTTPError_KeepsDomainMessage(t *testing.T) {
	httpErr := HTTPError(NotFound("patient", "p-9"))
	if httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", httpErr.Code)
	}
	if httpErr.Message != "not found: patient p-9" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}
