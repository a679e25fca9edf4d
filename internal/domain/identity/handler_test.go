package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func withIdentity(c echo.Context, u *User) {
	ctx := auth.WithIdentity(c.Request().Context(), auth.Identity{UserID: u.ID, Role: u.Role})
	c.SetRequest(c.Request().WithContext(ctx))
}

func TestHandler_Signup(t *testing.T) {
	h, e := newTestHandler()
	body := `{"role":"patient","name":"Jane","email":"jane@example.com","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Signup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var res map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res["token"] == "" || res["token"] == nil {
		t.Error("expected token in response")
	}
	user, _ := res["user"].(map[string]interface{})
	if _, leaked := user["passwordHash"]; leaked {
		t.Error("password hash must not be serialized")
	}
}

func TestHandler_Login_MissingFields(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err == nil {
		t.Error("expected error for missing password")
	}
}

func TestHandler_GetProfile(t *testing.T) {
	h, e := newTestHandler()
	u := signup(t, h.svc, auth.RolePatient, "me@example.com")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withIdentity(c, u)

	if err := h.GetProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_UpdateAvailability(t *testing.T) {
	h, e := newTestHandler()
	d := signup(t, h.svc, auth.RoleDoctor, "doc@example.com")

	body := `{"days":["Monday","Tuesday"],"startTime":"09:00","endTime":"13:00"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withIdentity(c, d)

	if err := h.UpdateAvailability(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := h.svc.GetUser(context.Background(), d.ID)
	if stored.Availability == nil || len(stored.Availability.Days) != 2 {
		t.Errorf("availability not persisted: %+v", stored.Availability)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	h, e := newTestHandler()
	signup(t, h.svc, auth.RoleDoctor, "doc@example.com")

	req := httptest.NewRequest(http.MethodGet, "/?specialization=card", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res["total"].(float64) != 1 {
		t.Errorf("expected 1 doctor, got %v", res["total"])
	}
}

func TestHandler_GetDoctor_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_GetUser_Summary(t *testing.T) {
	h, e := newTestHandler()
	u := signup(t, h.svc, auth.RoleDoctor, "doc@example.com")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())

	if err := h.GetUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(rec.Body.String(), "email") {
		t.Error("summary must not expose email")
	}
}
