// Package kafka carries order lifecycle events between the API and the
// notifier.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Zuhair246/kitab4u-sub000/internal/events"
)

// headerEventType lets consumers route on the event type without
// decoding the payload.
const headerEventType = "x-event-type"

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// Publish writes one event keyed by the order (or user) id, so all events
// for the same aggregate land on one partition in order.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if ev, ok := event.(events.Event); ok {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key: headerEventType, Value: []byte(ev.Type),
		})
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
