package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func up(name string, details interface{}) Check {
	return Check{Name: name, Run: func(context.Context) (interface{}, error) { return details, nil }}
}

func down(name string, err error) Check {
	return Check{Name: name, Run: func(context.Context) (interface{}, error) { return nil, err }}
}

func serve(t *testing.T, h echo.HandlerFunc) (*httptest.ResponseRecorder, Report) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	return rec, report
}

func TestHandler_AllUp(t *testing.T) {
	rec, report := serve(t, Handler(time.Second,
		up("postgres", map[string]int{"total_conns": 3}),
		up("redis", nil),
	))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if len(report.Checks) != 2 || report.Checks["redis"].State != StateUp {
		t.Errorf("unexpected checks %+v", report.Checks)
	}
	if report.Checks["postgres"].Details == nil {
		t.Error("expected postgres details in the report")
	}
}

func TestHandler_OneDown(t *testing.T) {
	rec, report := serve(t, Handler(time.Second,
		up("mongo", nil),
		down("redis", errors.New("dial tcp: connection refused")),
	))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", report.Status)
	}
	redis := report.Checks["redis"]
	if redis.State != StateDown || redis.Error != "dial tcp: connection refused" {
		t.Errorf("unexpected redis result %+v", redis)
	}
	if report.Checks["mongo"].State != StateUp {
		t.Error("a failing check must not mark the others down")
	}
}

func TestEvaluate_HonoursTimeout(t *testing.T) {
	slow := Check{Name: "slow", Run: func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report := Evaluate(ctx, []Check{slow})
	if report.Status != StatusUnhealthy || report.Checks["slow"].Error == "" {
		t.Errorf("expected the slow check to fail on timeout, got %+v", report)
	}
}
