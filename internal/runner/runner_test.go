package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlet-sync/internal/apperrors"
	"outlet-sync/internal/engine"
	"outlet-sync/internal/lock"
)

type blockingSyncer struct {
	release chan struct{}
	calls   atomic.Int32
	err     error
}

func (s *blockingSyncer) Run(ctx context.Context, trigger engine.Trigger) (engine.Report, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
		}
	}
	return engine.Report{RunID: "r", Trigger: trigger}, s.err
}

func TestRunner_StartRejectsOverlap(t *testing.T) {
	s := &blockingSyncer{release: make(chan struct{})}
	r := New(context.Background(), s, &lock.LocalLocker{}, zerolog.Nop())

	require.NoError(t, r.Start(engine.TriggerAPI))
	assert.ErrorIs(t, r.Start(engine.TriggerAPI), apperrors.ErrAlreadyRunning)
	_, err := r.Run(context.Background(), engine.TriggerManual)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRunning)

	close(s.release)
	r.Wait()

	rep, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, engine.TriggerAPI, rep.Trigger)
	assert.Equal(t, int32(1), s.calls.Load())

	require.NoError(t, r.Start(engine.TriggerCatalog))
	r.Wait()
	assert.Equal(t, int32(2), s.calls.Load())
}

func TestRunner_RunStoresReportOnError(t *testing.T) {
	s := &blockingSyncer{err: errors.New("catalog down")}
	r := New(context.Background(), s, &lock.LocalLocker{}, zerolog.Nop())

	_, ok := r.Last()
	assert.False(t, ok)

	_, err := r.Run(context.Background(), engine.TriggerManual)
	assert.Error(t, err)

	rep, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, engine.TriggerManual, rep.Trigger)
}

func TestRunner_Schedule(t *testing.T) {
	s := &blockingSyncer{}
	r := New(context.Background(), s, &lock.LocalLocker{}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	r.Schedule(ctx, 20*time.Millisecond)
	r.Wait()

	assert.GreaterOrEqual(t, s.calls.Load(), int32(2))
	rep, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, engine.TriggerSchedule, rep.Trigger)
}

func TestRunner_ScheduleDisabled(t *testing.T) {
	s := &blockingSyncer{}
	r := New(context.Background(), s, &lock.LocalLocker{}, zerolog.Nop())
	r.Schedule(context.Background(), 0)
	assert.Zero(t, s.calls.Load())
}
