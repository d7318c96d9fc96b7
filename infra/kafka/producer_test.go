package kafka

import (
	"bytes"
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

func TestSyncProducerPublish(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mockConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if !bytes.Equal(val, []byte("report")) {
			return errors.Errorf("unexpected value %q", val)
		}
		return nil
	})

	p := newSyncProducer(mock, "matchbook.executions")
	require.NoError(t, p.Publish(context.Background(), []byte("TSLA"), []byte("report")))
	require.NoError(t, p.Close())
}

func TestSyncProducerPublishError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mockConfig())
	mock.ExpectSendMessageAndFail(sarama.ErrNotEnoughReplicas)

	p := newSyncProducer(mock, "matchbook.executions")
	err := p.Publish(context.Background(), nil, []byte("report"))
	assert.True(t, errors.Is(err, sarama.ErrNotEnoughReplicas))
	require.NoError(t, p.Close())
}

func TestSyncProducerHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mockConfig())
	p := newSyncProducer(mock, "matchbook.executions")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, nil, []byte("report")), context.Canceled)
	require.NoError(t, p.Close())
}

func TestProducerCancelledContext(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "matchbook.executions", 0)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Publish(ctx, []byte("TSLA"), []byte("report")))
}

func TestClientRetriesAreIndependentSettings(t *testing.T) {
	cfg := newSaramaConfig(2)
	assert.Equal(t, 2, cfg.Producer.Retry.Max)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.True(t, cfg.Producer.Return.Successes)
	require.NoError(t, cfg.Validate())

	w := newWriter([]string{"127.0.0.1:1"}, "matchbook.executions", 0)
	assert.Equal(t, 1, w.MaxAttempts)
	require.NoError(t, w.Close())
}
