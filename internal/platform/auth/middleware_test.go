package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen echo.Context
	err := mw(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "doc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleDoctor},
	}, testSigningKey)

	c, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "doc-1" {
		t.Errorf("expected user doc-1, got %q", got)
	}
	if got := PrimaryRole(ctx); got != RoleDoctor {
		t.Errorf("expected role doctor, got %q", got)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "doc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSigningKey)

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "doc-1"},
	}, []byte("some-other-key-of-sufficient-length"))

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	token := createTestToken(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "doc-1", Issuer: "elsewhere"},
	}, testSigningKey)

	_, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: "clinic-server", SigningKey: testSigningKey}), "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_NoHeader(t *testing.T) {
	c, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != DevUserID {
		t.Errorf("expected %s, got %q", DevUserID, got)
	}
	if !HasRole(ctx, RoleDoctor) {
		t.Error("expected dev admin to satisfy every role")
	}
}

func TestDevAuthMiddleware_ValidatesSuppliedToken(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer not-a-jwt")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user id, got %q", got)
	}
	if got := PrimaryRole(context.Background()); got != "" {
		t.Errorf("expected empty role, got %q", got)
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("clinic-server", testSigningKey, time.Hour)
	token, exp, err := issuer.Issue("prac-7", RolePractitioner)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expected expiry in the future, got %s", exp)
	}

	c, err := runMiddleware(t, JWTMiddleware(JWTConfig{Issuer: "clinic-server", SigningKey: testSigningKey}), "Bearer "+token)
	if err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
	if got := UserIDFromContext(c.Request().Context()); got != "prac-7" {
		t.Errorf("expected prac-7, got %q", got)
	}
}

func TestPassword(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("expected error for short password")
	}

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("expected mismatch for wrong password")
	}
	if CheckPassword("not-a-bcrypt-hash", "correct horse") {
		t.Error("expected mismatch for malformed hash")
	}
}
