package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matchbook/infra/codec"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
)

type sent struct {
	key   string
	value []byte
}

type fakePublisher struct {
	failures int
	sent     []sent
	closed   bool
}

func (f *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, sent{key: string(key), value: value})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func setup(t *testing.T, pub Publisher, maxRetries uint32) (*Broadcaster, *outbox.Outbox, *metrics.Engine) {
	t.Helper()
	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	m := metrics.NewEngine(prometheus.NewRegistry())
	b := New(ob, pub, Config{PollInterval: time.Millisecond, MaxRetries: maxRetries}, zap.NewNop(), m)
	return b, ob, m
}

func putReport(t *testing.T, ob *outbox.Outbox, seq uint64, symbol string) {
	t.Helper()
	payload := codec.Encode(codec.Report{Seq: seq, Kind: codec.KindResting, Symbol: symbol})
	require.NoError(t, ob.Put(seq, payload))
}

func countState(t *testing.T, ob *outbox.Outbox, state outbox.State) int {
	t.Helper()
	n := 0
	require.NoError(t, ob.ScanByState(state, func(outbox.Record) error {
		n++
		return nil
	}))
	return n
}

func TestFlushPublishesInOrderAndDeletes(t *testing.T) {
	pub := &fakePublisher{}
	b, ob, m := setup(t, pub, 3)
	putReport(t, ob, 2, "TSLA")
	putReport(t, ob, 1, "AAPL")
	putReport(t, ob, 3, "TSLA")

	require.NoError(t, b.Flush(context.Background()))

	require.Len(t, pub.sent, 3)
	var seqs []uint64
	for _, s := range pub.sent {
		r, err := codec.Decode(s.value)
		require.NoError(t, err)
		assert.Equal(t, r.Symbol, s.key)
		seqs = append(seqs, r.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.Zero(t, countState(t, ob, outbox.StateNew))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Published))
}

func TestFlushStopsAtFirstFailure(t *testing.T) {
	pub := &fakePublisher{failures: 1}
	b, ob, m := setup(t, pub, 3)
	putReport(t, ob, 1, "TSLA")
	putReport(t, ob, 2, "TSLA")

	require.NoError(t, b.Flush(context.Background()))
	assert.Empty(t, pub.sent)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PublishErrors))

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	require.NoError(t, b.Flush(context.Background()))
	assert.Len(t, pub.sent, 2)
}

func TestFlushParksAfterMaxRetries(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	b, ob, _ := setup(t, pub, 2)
	putReport(t, ob, 1, "TSLA")
	putReport(t, ob, 2, "TSLA")

	require.NoError(t, b.Flush(context.Background()))
	require.NoError(t, b.Flush(context.Background()))

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateFailed, rec.State)
	assert.Equal(t, uint32(2), rec.Retries)

	require.Len(t, pub.sent, 1)
	r, err := codec.Decode(pub.sent[0].value)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.Seq)
}

func TestFlushParksUndecodablePayload(t *testing.T) {
	pub := &fakePublisher{}
	b, ob, _ := setup(t, pub, 3)
	require.NoError(t, ob.Put(1, []byte{0x80}))

	require.NoError(t, b.Flush(context.Background()))
	assert.Empty(t, pub.sent)
	assert.Equal(t, 1, countState(t, ob, outbox.StateFailed))
}

func TestRecoverRequeuesSent(t *testing.T) {
	pub := &fakePublisher{}
	b, ob, _ := setup(t, pub, 3)
	putReport(t, ob, 1, "TSLA")
	require.NoError(t, ob.UpdateState(1, outbox.StateSent, 1))

	require.NoError(t, b.Recover())
	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateNew, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)
}

func TestRunDrainsUntilCancelled(t *testing.T) {
	pub := &fakePublisher{}
	b, ob, _ := setup(t, pub, 3)
	putReport(t, ob, 1, "TSLA")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		return countState(t, ob, outbox.StateNew) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.NoError(t, b.Close())
	assert.True(t, pub.closed)
}
