// Package health runs dependency checks and reports them on one endpoint.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	StateUp   = "up"
	StateDown = "down"
)

// Check is one named dependency. Run returns optional details, such as
// pool statistics, along with the error that marks it down.
type Check struct {
	Name string
	Run  func(ctx context.Context) (interface{}, error)
}

type Result struct {
	State   string      `json:"state"`
	Latency string      `json:"latency"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type Report struct {
	Status string            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// Evaluate runs every check concurrently. The report is unhealthy when any
// check fails.
func Evaluate(ctx context.Context, checks []Check) Report {
	report := Report{Status: StatusHealthy, Checks: make(map[string]Result, len(checks))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, chk := range checks {
		wg.Add(1)
		go func(chk Check) {
			defer wg.Done()
			start := time.Now()
			details, err := chk.Run(ctx)
			res := Result{State: StateUp, Latency: time.Since(start).String(), Details: details}
			if err != nil {
				res.State = StateDown
				res.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[chk.Name] = res
			if err != nil {
				report.Status = StatusUnhealthy
			}
		}(chk)
	}
	wg.Wait()
	return report
}

// Handler serves the report, answering 503 when a dependency is down.
func Handler(timeout time.Duration, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		report := Evaluate(ctx, checks)
		status := http.StatusOK
		if report.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, report)
	}
}
