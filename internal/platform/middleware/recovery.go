package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

// Recovery converts a handler panic into an internal apperr, so the client
// gets the same JSON body as any other server failure. The panic value and
// stack are logged against the request id.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				// net/http uses this to abort a response on purpose.
				if r == http.ErrAbortHandler {
					panic(r)
				}

				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				reqLog := RequestLogger(c, logger)
				reqLog.Error().
					Str("panic", cause.Error()).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = apperr.Internal(errors.Join(errPanic, cause), "panic in %s %s", c.Request().Method, c.Path())
			}()
			return next(c)
		}
	}
}

var errPanic = errors.New("handler panicked")
