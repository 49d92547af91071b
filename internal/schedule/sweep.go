package schedule

import (
	"log/slog"
	"time"
)

// CooldownSweepJob is the job name used for cooldown eviction.
const CooldownSweepJob = "cooldown-sweep"

// Sweeper is a table whose stale entries can be evicted.
type Sweeper interface {
	Sweep(olderThan time.Duration) int
	Len() int
}

// SizeGauge receives the table size after each sweep.
type SizeGauge interface {
	SetCooldownSize(n int)
}

// CooldownSweep returns a job that evicts entries idle for longer than
// olderThan. gauge may be nil.
func CooldownSweep(log *slog.Logger, table Sweeper, olderThan time.Duration, gauge SizeGauge) func() {
	if log == nil {
		log = slog.Default()
	}
	return func() {
		removed := table.Sweep(olderThan)
		size := table.Len()
		if gauge != nil {
			gauge.SetCooldownSize(size)
		}
		if removed > 0 {
			log.Debug("cooldown entries evicted", slog.Int("removed", removed), slog.Int("remaining", size))
		}
	}
}
