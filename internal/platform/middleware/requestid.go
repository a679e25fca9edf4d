package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or generates one, and
// stores it under "request_id" for the logger and recovery middleware.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestLogger returns logger with the request id, method and path of c
// attached.
func RequestLogger(c echo.Context, logger zerolog.Logger) zerolog.Logger {
	rid, _ := c.Get("request_id").(string)
	return logger.With().
		Str("request_id", rid).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Logger()
}
