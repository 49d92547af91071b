package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/doubtsolver/internal/ratelimit"
)

func TestAddRejectsBadSpec(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	err := svc.Add("broken", "every now and then", func() {})
	require.Error(t, err)
	_, ok := svc.Next("broken")
	assert.False(t, ok)
}

func TestAddReplacesJobWithSameName(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	require.NoError(t, svc.Add("job", "@every 1h", func() {}))
	require.NoError(t, svc.Add("job", "@every 2h", func() {}))
	assert.Len(t, svc.cron.Entries(), 1)
}

func TestServiceRunsJobs(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	var runs atomic.Int32
	require.NoError(t, svc.Add("tick", "@every 1s", func() { runs.Add(1) }))
	svc.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestServiceRecoversPanickingJob(t *testing.T) {
	t.Parallel()

	svc := NewService(nil)
	var runs atomic.Int32
	require.NoError(t, svc.Add("boom", "@every 1s", func() {
		runs.Add(1)
		panic("boom")
	}))
	svc.Start()
	defer func() { _ = svc.Stop(context.Background()) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
}

type gauge struct {
	mu   sync.Mutex
	last int
}

func (g *gauge) SetCooldownSize(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func TestCooldownSweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	table := ratelimit.NewCooldownWithClock(clock)
	require.True(t, table.TryAcquire(1, time.Second))

	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	require.True(t, table.TryAcquire(2, time.Second))

	g := &gauge{}
	CooldownSweep(nil, table, 30*time.Second, g)()

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, g.last)
	assert.True(t, table.TryAcquire(1, time.Second))
	assert.False(t, table.TryAcquire(2, time.Second))
}
