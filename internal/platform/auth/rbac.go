package auth

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

// RequireRole admits callers whose token carries one of roles. It must run
// after JWTMiddleware; a request without an identity is unauthorized, a
// request with another role is forbidden. Unknown roles panic at route
// registration.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	if len(roles) == 0 {
		panic("auth: RequireRole needs at least one role")
	}
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		if !ValidRole(r) {
			panic(fmt.Sprintf("auth: unknown role %q", r))
		}
		allowed[r] = true
	}
	denied := fmt.Sprintf("this action requires the %s role", strings.Join(roles, " or "))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return apperr.Unauthorized("authentication required")
			}
			if !allowed[id.Role] {
				return apperr.Forbidden("%s", denied)
			}
			return next(c)
		}
	}
}
