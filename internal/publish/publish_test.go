package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"smabt/internal/journal"
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

func TestEncodeMessageKeysBySymbol(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := encodeMessage(journal.Entry{RunID: "r1", Timestamp: ts, Symbol: "SPY", Result: journal.ResultOK})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "SPY" || !msg.Time.Equal(ts) {
		t.Fatalf("unexpected message %+v", msg)
	}
	var decoded journal.Entry
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.RunID != "r1" || decoded.Result != journal.ResultOK {
		t.Fatalf("unexpected payload %+v", decoded)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != "r1" {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestKafkaPublish(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{writer: w, topic: "backtests"}
	if err := k.Publish(context.Background(), journal.Entry{Symbol: "QQQ"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "QQQ" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	if err := k.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer closed, err=%v", err)
	}
}

func TestKafkaPublishWrapsError(t *testing.T) {
	sentinel := errors.New("broker down")
	k := &Kafka{writer: &fakeWriter{err: sentinel}, topic: "backtests"}
	if err := k.Publish(context.Background(), journal.Entry{}); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewKafkaValidates(t *testing.T) {
	if _, err := NewKafka(nil, "t"); err == nil {
		t.Fatal("expected error for empty brokers")
	}
	if _, err := NewKafka([]string{"localhost:9092"}, ""); err == nil {
		t.Fatal("expected error for empty topic")
	}
	k, err := NewKafka([]string{"a:9092", "b:9092"}, "t")
	if err != nil {
		t.Fatalf("new kafka: %v", err)
	}
	_ = k.Close()
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), journal.Entry{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}
