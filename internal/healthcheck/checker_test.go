package healthcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunAggregates(t *testing.T) {
	t.Parallel()

	ok := CheckFunc{ID: "storage", Fn: func(context.Context) error { return nil }}
	bad := CheckFunc{ID: "telegram", Fn: func(context.Context) error { return errors.New("not polling") }}

	report := Run(context.Background(), ok)
	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, []CheckResult{{ID: "storage", Status: StatusOK}}, report.Checks)

	report = Run(context.Background(), ok, bad)
	assert.Equal(t, StatusError, report.Status)
	assert.Equal(t, CheckResult{ID: "telegram", Status: StatusError, Summary: "not polling"}, report.Checks[1])
}

func TestRunWithoutCheckers(t *testing.T) {
	t.Parallel()

	report := Run(context.Background())
	assert.Equal(t, StatusOK, report.Status)
	assert.Empty(t, report.Checks)
}

func TestCheckReceivesDeadline(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	Run(context.Background(), CheckFunc{ID: "x", Fn: func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}})
	assert.True(t, hasDeadline)
}
