package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Outbound is a process-wide token bucket for calls to a rate-limited
// provider. A nil *Outbound never blocks.
type Outbound struct {
	limiter *rate.Limiter
}

// NewOutbound returns a limiter allowing rps calls per second with the given
// burst. It returns nil when rps is not positive.
func NewOutbound(rps float64, burst int) *Outbound {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Outbound{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (o *Outbound) Wait(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}
