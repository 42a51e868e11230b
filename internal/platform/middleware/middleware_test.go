package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")

	handler := func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "front-desk-42")

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "front-desk-42" {
			t.Errorf("expected front-desk-42, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	_ = RequestID()(handler)(c)
	if got := rec.Header().Get(RequestIDHeader); got != "front-desk-42" {
		t.Errorf("expected front-desk-42 in response header, got %s", got)
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, strings.Repeat("x", 200))

	_ = RequestID()(func(c echo.Context) error { return nil })(c)
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("expected a generated uuid, got %q", got)
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	c, _ := newContext(http.MethodGet, "/api/v1/therapies")
	c.Set("request_id", "rid-1")

	err := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"request_id":"rid-1"`, `"path":"/api/v1/therapies"`, `"status":200`, `"level":"info"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log line %s", want, out)
		}
	}
}

func TestLogger_UsesErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	c, _ := newContext(http.MethodGet, "/api/v1/patients/p-1")

	_ = Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})(c)
	if out := buf.String(); !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn with 404, got %s", out)
	}

	buf.Reset()
	c, _ = newContext(http.MethodGet, "/api/v1/patients")
	_ = Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return errors.New("connection reset")
	})(c)
	if out := buf.String(); !strings.Contains(out, `"status":500`) || !strings.Contains(out, `"level":"error"`) {
		t.Errorf("expected error with 500, got %s", out)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/panic")

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("test panic")
	})(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/ok")

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name string
		hsts bool
	}{
		{"plain http", false},
		{"tls", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/patients")
			err := SecurityHeaders(tt.hsts)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for header, want := range apiSecurityHeaders {
				if got := rec.Header().Get(header); got != want {
					t.Errorf("header %s: got %q, want %q", header, got, want)
				}
			}
			hasHSTS := rec.Header().Get("Strict-Transport-Security") != ""
			if hasHSTS != tt.hsts {
				t.Errorf("expected HSTS present=%v, got %v", tt.hsts, hasHSTS)
			}
		})
	}
}
