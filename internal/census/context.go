package census

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// resolution is the state shared by one top-level call and every
// supplemental request it spawns.
type resolution struct {
	id       string
	inFlight atomic.Int64
}

type resolutionKey struct{}

// withResolution returns ctx carrying a resolution, creating one when ctx
// has none. The bool reports whether it was created here.
func withResolution(ctx context.Context) (context.Context, *resolution, bool) {
	if existing, ok := ctx.Value(resolutionKey{}).(*resolution); ok {
		return ctx, existing, false
	}
	res := &resolution{id: uuid.NewString()}
	return context.WithValue(ctx, resolutionKey{}, res), res, true
}

// ResolutionID returns the id of the resolution ctx belongs to, or "".
func ResolutionID(ctx context.Context) string {
	if res, ok := ctx.Value(resolutionKey{}).(*resolution); ok {
		return res.id
	}
	return ""
}

// SupplementalInFlight returns how many supplemental requests of ctx's
// resolution are running.
func SupplementalInFlight(ctx context.Context) int64 {
	if res, ok := ctx.Value(resolutionKey{}).(*resolution); ok {
		return res.inFlight.Load()
	}
	return 0
}

func logger(ctx context.Context) *zap.Logger {
	if id := ResolutionID(ctx); id != "" {
		return zap.L().With(zap.String("resolution_id", id))
	}
	return zap.L()
}
