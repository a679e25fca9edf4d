package blobstore

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

// Handler streams a stored file named by the :name path parameter. The
// content type comes from the allowlist, never from the file itself.
func Handler(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("name")
		rc, err := store.Open(c.Request().Context(), name)
		if errors.Is(err, ErrBlobNotFound) {
			return apperr.NotFound("file not found")
		}
		if err != nil {
			return apperr.Internal(err, "open file %s", name)
		}
		defer rc.Close()

		contentType, ok := AllowedExtensions[strings.ToLower(filepath.Ext(name))]
		if !ok {
			contentType = echo.MIMEOctetStream
		}
		h := c.Response().Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set(echo.HeaderCacheControl, "private, max-age=86400")
		return c.Stream(http.StatusOK, contentType, rc)
	}
}
