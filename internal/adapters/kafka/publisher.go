// Package kafka streams committed room events to a Kafka topic, keyed by room
// so that one room's events stay ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	k "github.com/segmentio/kafka-go"

	"github.com/dkeye/voicerooms/internal/core"
)

const DefaultTopic = "rooms.events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...k.Message) error
	Close() error
}

type Publisher struct {
	w messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{w: &k.Writer{
		Addr:         k.TCP(brokers...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
		Async:        true,
	}}
}

func (p *Publisher) Publish(ctx context.Context, ev core.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", ev.Type, err)
	}
	return p.w.WriteMessages(ctx, k.Message{
		Key:   []byte(ev.RoomID),
		Value: value,
		Time:  ev.At,
		Headers: []k.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
}

func (p *Publisher) Close() error { return p.w.Close() }
