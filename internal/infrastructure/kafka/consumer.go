package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/Zuhair246/kitab4u-sub000/internal/events"
)

// EventHandler processes one decoded lifecycle event. Returning an error
// logs and moves on; the topic is notification traffic, not a ledger.
type EventHandler func(ctx context.Context, ev events.Event) error

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader}
}

// Consume reads and dispatches events until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[Kafka] Read error: %v", err)
			continue
		}

		var ev events.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Printf("[Kafka] Skipping undecodable message at offset %d: %v", msg.Offset, err)
			continue
		}
		if err := handler(ctx, ev); err != nil {
			log.Printf("[Kafka] Handler failed for event %s (%s): %v", ev.ID, ev.Type, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
