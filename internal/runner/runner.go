// Package runner owns sync triggering: manual, API, periodic and catalog
// change triggers all go through the same run lock.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/cache"
	"outlet-sync/internal/engine"
	"outlet-sync/internal/lock"
)

type Syncer interface {
	Run(ctx context.Context, trigger engine.Trigger) (engine.Report, error)
}

type Runner struct {
	syncer Syncer
	locker lock.Locker
	base   context.Context
	last   cache.Snapshot[engine.Report]
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// New binds background runs to base: cancelling it stops them.
func New(base context.Context, s Syncer, l lock.Locker, logger zerolog.Logger) *Runner {
	return &Runner{
		syncer: s,
		locker: l,
		base:   base,
		log:    logger.With().Str("component", "runner").Logger(),
	}
}

// Run syncs in the caller's goroutine.
func (r *Runner) Run(ctx context.Context, trigger engine.Trigger) (engine.Report, error) {
	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		return engine.Report{}, err
	}
	defer unlock()
	return r.run(ctx, trigger)
}

// Start takes the run lock and syncs in the background. It returns
// apperrors.ErrAlreadyRunning when a run is in progress.
func (r *Runner) Start(trigger engine.Trigger) error {
	unlock, err := r.locker.TryLock(r.base)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unlock()
		_, _ = r.run(r.base, trigger)
	}()
	return nil
}

func (r *Runner) run(ctx context.Context, trigger engine.Trigger) (engine.Report, error) {
	rep, err := r.syncer.Run(ctx, trigger)
	r.last.Store(rep)
	return rep, err
}

// Last returns the report of the most recent finished run.
func (r *Runner) Last() (engine.Report, bool) {
	return r.last.Load()
}

// Schedule starts a run every interval until ctx is done. Ticks that find a
// run in progress are dropped.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	r.log.Info().Dur("interval", interval).Msg("periodic sync enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.Start(engine.TriggerSchedule); err != nil {
				if errors.Is(err, apperrors.ErrAlreadyRunning) {
					r.log.Debug().Msg("sync still running, tick skipped")
					continue
				}
				r.log.Error().Err(err).Msg("scheduled sync")
			}
		}
	}
}

// Wait blocks until background runs return.
func (r *Runner) Wait() {
	r.wg.Wait()
}
