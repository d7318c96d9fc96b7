package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// SyncProducer publishes through a sarama SyncProducer. The context is
// only checked before sending; sarama has no per-call cancellation.
type SyncProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSyncProducer dials the brokers. retries is sarama's Producer.Retry.Max,
// the resends made inside one Publish.
func NewSyncProducer(brokers []string, topic string, retries int) (*SyncProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, newSaramaConfig(retries))
	if err != nil {
		return nil, errors.Wrap(err, "sarama producer")
	}
	return newSyncProducer(producer, topic), nil
}

func newSaramaConfig(retries int) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func newSyncProducer(p sarama.SyncProducer, topic string) *SyncProducer {
	return &SyncProducer{producer: p, topic: topic}
}

func (p *SyncProducer) Publish(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return errors.Wrap(err, "sarama send")
}

func (p *SyncProducer) Close() error {
	return p.producer.Close()
}
