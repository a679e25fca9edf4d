package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

const testSecret = "test-secret-key-for-unit-tests-only"

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
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
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(NewTokenManager(testSecret, time.Hour))(okHandler)(c)
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
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			c := e.NewContext(req, httptest.NewRecorder())

			err := JWTMiddleware(NewTokenManager(testSecret, time.Hour))(okHandler)(c)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	userID := uuid.New()
	token, err := tm.Issue(userID, RoleDoctor)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Identity
	h := JWTMiddleware(tm)(func(c echo.Context) error {
		got, _ = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != userID || got.Role != RoleDoctor {
		t.Errorf("unexpected identity %+v", got)
	}
	if c.Get("user_id") != userID.String() {
		t.Errorf("expected user_id on echo context, got %v", c.Get("user_id"))
	}
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := tm.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	tm.now = time.Now
	if _, err := tm.Verify(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, _ := NewTokenManager("other-secret", time.Hour).Issue(uuid.New(), RolePatient)
	if _, err := NewTokenManager(testSecret, time.Hour).Verify(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestTokenManager_RejectsUnknownRole(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		ID:               uuid.NewString(),
		Role:             "admin",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokenManager(testSecret, time.Hour).Verify(token); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: uuid.New(), Role: RolePatient}))
	c := e.NewContext(req, httptest.NewRecorder())

	err := RequireRole(RoleDoctor)(okHandler)(c)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if msg := apperr.Message(err); msg != "this action requires the doctor role" {
		t.Errorf("unexpected message %q", msg)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := RequireRole(RoleDoctor, RolePatient)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequireRole(RolePatient)(okHandler)(c)
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Errorf("expected unauthorized without an identity, got %v", err)
	}
}

func TestRequireRole_PanicsOnUnknownRole(t *testing.T) {
	for _, roles := range [][]string{nil, {"admin"}, {RoleDoctor, "nurse"}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for roles %v", roles)
				}
			}()
			RequireRole(roles...)
		}()
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected mismatch for wrong password")
	}
	if CheckPassword("not-a-hash", "s3cret") {
		t.Error("expected mismatch for malformed hash")
	}
}
