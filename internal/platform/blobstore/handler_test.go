package blobstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

func serveFile(t *testing.T, store Store, name string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil), rec)
	c.SetParamNames("name")
	c.SetParamValues(name)
	return rec, Handler(store)(c)
}

func TestHandler_StreamsStoredFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads", 1024)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	obj, err := store.Save(context.Background(), upload("xray.png", "image/png", pngHeader))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := serveFile(t, store, obj.StoredName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "image/png" {
		t.Errorf("expected image/png, got %s", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
	if rec.Body.String() != string(pngHeader) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestHandler_UnknownOrTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads", 1024)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	for _, name := range []string{"00000000-0000-0000-0000-000000000000.png", "..%2F..%2Fetc%2Fpasswd", "../config.env"} {
		_, err := serveFile(t, store, name)
		if !apperr.Is(err, apperr.KindNotFound) {
			t.Errorf("%s: expected not found, got %v", name, err)
		}
	}
}
