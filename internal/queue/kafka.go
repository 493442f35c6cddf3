// insurance-portal/internal/queue/kafka.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/example/insurance-portal/internal/store"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Bus publishes notification events to one topic.
type Bus struct {
	Brokers []string
	Topic   string
	w       messageWriter
}

func New(brokers []string, topic string) *Bus {
	return &Bus{
		Brokers: brokers,
		Topic:   topic,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{}, // same user -> same partition
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (b *Bus) Publish(ctx context.Context, key, payload []byte) error {
	return b.w.WriteMessages(ctx, kafka.Message{Key: key, Value: payload})
}

func (b *Bus) Close() error { return b.w.Close() }

// Consume reads the topic as part of group and calls fn per message.
// A failed fn leaves the offset uncommitted so the event is redelivered.
func (b *Bus) Consume(ctx context.Context, group string, fn func(context.Context, kafka.Message) error) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.Brokers,
		Topic:    b.Topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := fn(ctx, m); err != nil {
			return fmt.Errorf("handle offset %d: %w", m.Offset, err)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit offset %d: %w", m.Offset, err)
		}
	}
}

// KafkaNotifier publishes notification events for the worker to persist.
type KafkaNotifier struct {
	bus *Bus
}

func NewKafkaNotifier(bus *Bus) *KafkaNotifier {
	return &KafkaNotifier{bus: bus}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n store.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return k.bus.Publish(ctx, []byte(n.UserID), payload)
}

// DecodeNotification parses an event produced by KafkaNotifier.
func DecodeNotification(m kafka.Message) (*store.Notification, error) {
	var n store.Notification
	if err := json.Unmarshal(m.Value, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if n.ID == "" || n.UserID == "" {
		return nil, fmt.Errorf("notification event missing id or user")
	}
	return &n, nil
}
