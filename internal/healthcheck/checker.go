package healthcheck

import (
	"context"
	"sync"
	"time"
)

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusError indicates check failed.
	StatusError = "error"
)

const defaultCheckTimeout = 5 * time.Second

// CheckResult is one readiness check item.
type CheckResult struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
}

// Checker evaluates one dependency of the bot.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckFunc adapts a function to Checker. A nil error is StatusOK.
type CheckFunc struct {
	ID string
	Fn func(ctx context.Context) error
}

func (c CheckFunc) Check(ctx context.Context) CheckResult {
	if err := c.Fn(ctx); err != nil {
		return CheckResult{ID: c.ID, Status: StatusError, Summary: err.Error()}
	}
	return CheckResult{ID: c.ID, Status: StatusOK}
}

// Report aggregates check results. Status is StatusError when any check failed.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Run evaluates checkers concurrently, each bounded by a timeout.
func Run(ctx context.Context, checkers ...Checker) Report {
	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
			defer cancel()
			results[i] = checker.Check(checkCtx)
		}(i, checker)
	}
	wg.Wait()

	report := Report{Status: StatusOK, Checks: results}
	for _, r := range results {
		if r.Status != StatusOK {
			report.Status = StatusError
		}
	}
	return report
}
