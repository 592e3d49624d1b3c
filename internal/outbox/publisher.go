// Package outbox delivers domain events to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header keys attached to every published message.
const (
	HeaderEventType = "event_type"
	HeaderAdminID   = "admin_id"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON-encoded events to a single topic, keyed so that
// events for the same admin stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher constructs a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	})
}

func newPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: func() time.Time { return time.Now().UTC() }}
}

// Publish encodes payload and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, adminID, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		failedCounter.WithLabelValues(eventType).Inc()
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderAdminID, Value: []byte(adminID)},
		},
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	publishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		failedCounter.WithLabelValues(eventType).Inc()
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	deliveredCounter.WithLabelValues(eventType).Inc()
	return nil
}

// Close flushes and releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
