// Package broker streams reactor telemetry to Kafka.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MRamiBalles/reactor-sim/internal/telemetry"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Reading is the wire form of a telemetry sample on the topic.
type Reading struct {
	ReactorID   string           `json:"reactorId"`
	Timestamp   time.Time        `json:"timestamp"`
	Sample      telemetry.Sample `json:"sample"`
	StatusFlags []string         `json:"statusFlags"`
}

// KafkaPublisher implements telemetry.Publisher on a Kafka topic. Messages
// are keyed by reactor id so one reactor's samples stay ordered.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaWriter builds a writer for brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaPublisher wraps w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish implements telemetry.Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, reactorID string, s telemetry.Sample) error {
	b, err := json.Marshal(Reading{
		ReactorID:   reactorID,
		Timestamp:   s.Timestamp,
		Sample:      s,
		StatusFlags: s.Status.Names(),
	})
	if err != nil {
		return fmt.Errorf("encoding reading: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(reactorID), Value: b, Time: s.Timestamp}); err != nil {
		return fmt.Errorf("writing to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
