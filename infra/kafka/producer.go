package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Producer publishes through a kafka-go Writer. Every call blocks until
// all in-sync replicas acknowledge.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds the writer. retries bounds the writer's own resends
// within one Publish; the broadcaster retries across passes on top of it.
func NewProducer(brokers []string, topic string, retries int) *Producer {
	return &Producer{writer: newWriter(brokers, topic, retries)}
}

func newWriter(brokers []string, topic string, retries int) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  retries + 1,
	}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	return errors.Wrap(err, "kafka-go write")
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
