package ratelimit

import (
	"sync"
	"time"
)

// Cooldown enforces a minimum gap between accepted requests per requester.
// It never queues or retries: a rejected call simply returns false.
type Cooldown struct {
	mu   sync.Mutex
	last map[int64]time.Time
	now  func() time.Time
}

// NewCooldown creates an empty cooldown table using the wall clock.
func NewCooldown() *Cooldown {
	return NewCooldownWithClock(time.Now)
}

// NewCooldownWithClock creates a cooldown table reading time from now.
func NewCooldownWithClock(now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{
		last: make(map[int64]time.Time),
		now:  now,
	}
}

// TryAcquire records the current time for requesterID and returns true when
// no earlier request is recorded or at least minGap has elapsed since it.
// Otherwise the stored timestamp is left untouched and false is returned.
func (c *Cooldown) TryAcquire(requesterID int64, minGap time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if prev, ok := c.last[requesterID]; ok && now.Sub(prev) < minGap {
		return false
	}
	c.last[requesterID] = now
	return true
}

// Sweep deletes entries last accepted more than olderThan ago and returns
// how many were removed. Entries older than the active gap no longer affect
// any decision, so sweeping with olderThan >= minGap is invisible to callers.
func (c *Cooldown) Sweep(olderThan time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-olderThan)
	removed := 0
	for id, ts := range c.last {
		if ts.Before(cutoff) {
			delete(c.last, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked requesters.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
