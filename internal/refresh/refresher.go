package refresh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Refreshable re-resolves its current inputs.
type Refreshable interface {
	Refresh(ctx context.Context)
}

// Refresher re-resolves availability on a fixed interval.
type Refresher struct {
	Target   Refreshable
	Interval time.Duration
	Log      *zap.Logger
}

// Run refreshes every Interval until ctx is done. The first refresh
// happens one interval after start.
func (r *Refresher) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return errors.New("refresh interval must be > 0")
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			log.Debug("refreshing availability")
			r.Target.Refresh(ctx)
		}
	}
}
