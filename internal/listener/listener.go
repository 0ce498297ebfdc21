// Package listener turns store catalog NOTIFY events into sync runs.
package listener

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/engine"
)

const (
	debounce  = 200 * time.Millisecond
	pollEvery = time.Second
)

type Starter interface {
	Start(trigger engine.Trigger) error
}

// ListenAndTrigger holds a LISTEN connection until ctx is done, reconnecting
// with jittered backoff. Changes that arrive while a run is active are kept
// pending and trigger one more run once the lock frees up.
func ListenAndTrigger(ctx context.Context, pool *pgxpool.Pool, s Starter, channel string, baseBackoff time.Duration) {
	tr := &trigger{starter: s, debounce: debounce}
	for {
		err := listen(ctx, pool, channel, tr)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Dur("retry_in", backoff).Msg("listen connection lost")
		select {
		case <-ctx.Done():
			log.Info().Msg("listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listen(ctx context.Context, pool *pgxpool.Pool, channel string, tr *trigger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for catalog changes")

	for {
		waitCtx, cancel := context.WithTimeout(ctx, pollEvery)
		ntf, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			tr.flush(time.Now())
		case err != nil:
			return err
		default:
			log.Debug().Str("channel", ntf.Channel).Str("payload", ntf.Payload).Msg("catalog change")
			tr.notify(time.Now())
		}
	}
}

// trigger coalesces bursts of notifications into single runs.
type trigger struct {
	starter  Starter
	debounce time.Duration
	pending  bool
	lastFire time.Time
}

func (t *trigger) notify(now time.Time) {
	t.pending = true
	if now.Sub(t.lastFire) < t.debounce {
		return
	}
	t.fire(now)
}

func (t *trigger) flush(now time.Time) {
	if t.pending {
		t.fire(now)
	}
}

func (t *trigger) fire(now time.Time) {
	err := t.starter.Start(engine.TriggerCatalog)
	switch {
	case err == nil:
		log.Info().Msg("catalog changed; sync started")
		t.pending = false
		t.lastFire = now
	case errors.Is(err, apperrors.ErrAlreadyRunning):
		log.Debug().Msg("sync in progress; change kept pending")
	default:
		log.Error().Err(err).Msg("start sync on catalog change")
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x to 1.5x
	return time.Duration(float64(base) * factor)
}
