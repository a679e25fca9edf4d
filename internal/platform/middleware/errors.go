package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrorHandler renders echo and apperr errors as JSON. Internal failures are
// logged with their cause; clients get a generic message unless verbose is
// set.
func ErrorHandler(logger zerolog.Logger, verbose bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid, _ := c.Get("request_id").(string)
		resp := ErrorResponse{RequestID: rid}
		status := http.StatusInternalServerError

		var httpErr *echo.HTTPError
		var appErr *apperr.Error
		switch {
		case errors.As(err, &appErr):
			status = apperr.HTTPStatus(appErr.Kind)
			resp.Kind = appErr.Kind.String()
			resp.Error = appErr.Message
			if appErr.Kind == apperr.KindInternal {
				reqLog := RequestLogger(c, logger)
				reqLog.Error().Err(err).Msg("internal error")
				if !verbose {
					resp.Error = "internal server error"
				} else {
					resp.Error = appErr.Error()
				}
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			resp.Error = fmt.Sprintf("%v", httpErr.Message)
		default:
			reqLog := RequestLogger(c, logger)
			reqLog.Error().Err(err).Msg("unhandled error")
			resp.Error = "internal server error"
			if verbose {
				resp.Error = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, resp)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
