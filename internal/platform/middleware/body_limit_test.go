package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1M", 1 << 20},
		{"2MB", 2 << 20},
		{"512K", 512 << 10},
		{"1g", 1 << 30},
		{"1024", 1024},
		{"", defaultBodyLimit},
		{"invalid", defaultBodyLimit},
		{"-5K", defaultBodyLimit},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.input); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(`{"name":"Asha"}`))
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := BodyLimit("1M")(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if string(b) != `{"name":"Asha"}` {
			t.Errorf("unexpected body %q", b)
		}
		called = true
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestBodyLimit_RejectsByContentLength(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(make([]byte, 2048)))
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	err := BodyLimit("1K")(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	assertStatus(t, err, http.StatusRequestEntityTooLarge)
	if called {
		t.Error("handler must not run for oversized body")
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/therapies/t-1/sessions", bytes.NewReader(bytes.Repeat([]byte("a"), 1024)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	err := BodyLimit("512")(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})(c)
	assertStatus(t, err, http.StatusRequestEntityTooLarge)
}

func TestBodyLimit_ExactFit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(bytes.Repeat([]byte("a"), 512)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	err := BodyLimit("512")(func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if len(b) != 512 {
			t.Errorf("expected 512 bytes, got %d", len(b))
		}
		return err
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	called := false
	if err := BodyLimit("1")(func(c echo.Context) error { called = true; return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called for GET with no body")
	}
}

func assertStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}
