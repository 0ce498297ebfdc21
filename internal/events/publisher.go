// Package events ships outlet action outcomes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"outlet-sync/internal/engine"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish writes ev keyed by campaign and outlet code, so events of one
// outlet stay ordered within a partition.
func (k *KafkaPublisher) Publish(ctx context.Context, ev engine.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(ev.CampaignID) + "/" + ev.Code),
		Value: msg,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(ev.RunID)},
			{Key: "action", Value: []byte(ev.Action)},
		},
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, engine.Event) error { return nil }
func (Noop) Close() error                                { return nil }
