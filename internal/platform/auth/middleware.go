package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to a request or socket.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// Verifier checks a bearer token.
type Verifier interface {
	Verify(token string) (Identity, error)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != uuid.Nil
}

// UserIDFromContext returns uuid.Nil when the request is unauthenticated.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func JWTMiddleware(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			tokenStr, ok := BearerToken(authHeader)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			id, err := v.Verify(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set("user_id", id.UserID.String())
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}
