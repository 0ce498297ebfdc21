package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outlet-sync/internal/engine"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	id := 7
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), engine.Event{
		RunID: "run-1", CampaignID: 42, Code: "msk-01", RemoteID: &id,
		Action: engine.ActionDelete, OK: true, At: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42/msk-01", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "action", Value: []byte("delete")})

	var got engine.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 7, *got.RemoteID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	assert.Error(t, p.Publish(context.Background(), engine.Event{Code: "x"}))
}

func TestNoop(t *testing.T) {
	var p engine.Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), engine.Event{}))
}
