package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer keeps a minimum interval between partner calls. It blocks the caller;
// the sync flow is sequential so one token is enough.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer returns a pacer allowing one call per interval. interval <= 0
// disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

// Do runs fn once the pace allows it.
func (p *Pacer) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
