package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// throttle is a per-host limiter that halves its rate on 429 responses and
// creeps back to the configured rate on success.
type throttle struct {
	mu      sync.Mutex
	lim     *rate.Limiter
	ceiling rate.Limit
	floor   rate.Limit
	current rate.Limit
}

func newThrottle(r rate.Limit, burst int) *throttle {
	return &throttle{
		lim:     rate.NewLimiter(r, burst),
		ceiling: r,
		floor:   r / 8,
		current: r,
	}
}

func (t *throttle) Wait(ctx context.Context) error {
	return t.lim.Wait(ctx)
}

func (t *throttle) slowDown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := max(t.current/2, t.floor)
	if next == t.current {
		return
	}
	t.current = next
	t.lim.SetLimit(next)
	zap.L().Warn("upstream rate limited, slowing down", zap.Float64("rate", float64(next)))
}

func (t *throttle) relax() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current >= t.ceiling {
		return
	}
	t.current = min(t.current*1.25, t.ceiling)
	t.lim.SetLimit(t.current)
}

func (t *throttle) limit() rate.Limit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
