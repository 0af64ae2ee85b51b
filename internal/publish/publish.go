package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"smabt/internal/journal"
)

// Publisher forwards finished run entries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, entry journal.Entry) error
	Close() error
}

// Nop discards every entry. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, journal.Entry) error { return nil }
func (Nop) Close() error                                 { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes each entry as a JSON message keyed by symbol.
type Kafka struct {
	writer messageWriter
	topic  string
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return &Kafka{writer: writer, topic: topic}, nil
}

func (k *Kafka) Publish(ctx context.Context, entry journal.Entry) error {
	msg, err := encodeMessage(entry)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func encodeMessage(entry journal.Entry) (kafka.Message, error) {
	value, err := json.Marshal(entry)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal entry: %w", err)
	}
	return kafka.Message{
		Key:   []byte(entry.Symbol),
		Value: value,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(entry.RunID)},
			{Key: "result", Value: []byte(entry.Result)},
		},
	}, nil
}
