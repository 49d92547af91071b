package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveDoubt("success")
	c.ObserveDoubt("success")
	c.ObserveDoubt("rate_limited")
	c.ObserveCommand("grant", "success")
	c.ObserveAnswer("success", 2*time.Second)
	c.SetCooldownSize(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Doubts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Doubts.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Commands.WithLabelValues("grant", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.CooldownSize))
}

func TestNilCollectorIsSafe(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.ObserveDoubt("success")
	c.ObserveAnswer("success", time.Second)
	c.ObserveCommand("start", "success")
	c.SetCooldownSize(1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveDoubt("unauthorized")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `doubtsolver_doubts_total{outcome="unauthorized"} 1`), string(body))
}
