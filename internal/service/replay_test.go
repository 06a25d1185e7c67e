package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/failures"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed += len(msgs)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func failureMessage(t *testing.T, rec failures.Record, at time.Time) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(rec.ID), Value: raw, Time: at}
}

func TestReplayer_ReplaysMatchingKinds(t *testing.T) {
	h := newHarness(t, StatusOverrides{}, newOrder("100"))
	past := time.Now().Add(-time.Hour)

	body := approved(t, "100_1", "TX1").Body
	reader := &fakeReader{msgs: []kafka.Message{
		failureMessage(t, failures.Record{ID: "a", Kind: string(callback.KindAuthenticationFailed), RawInput: `{}`}, past),
		failureMessage(t, failures.Record{ID: "b", Kind: string(callback.KindDependencyFailure), Method: "POST", RawInput: string(body)}, past),
		{Value: []byte("not json"), Time: past},
	}}

	r := NewReplayer(reader, h.processor, []string{string(callback.KindDependencyFailure)}, 20*time.Millisecond, zap.NewNop())
	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Read: 3, Replayed: 1, Skipped: 2}, stats)
	assert.Equal(t, 3, reader.committed)
	order := h.store.order("100")
	assert.True(t, order.IsPaid())
	assert.Equal(t, models.OrderPaid, order.Status)
}

func TestReplayer_StopsAtRecordsWrittenDuringRun(t *testing.T) {
	h := newHarness(t, StatusOverrides{})

	reader := &fakeReader{msgs: []kafka.Message{
		failureMessage(t, failures.Record{ID: "new", Kind: string(callback.KindUnknownOrder), RawInput: `{}`}, time.Now().Add(time.Hour)),
	}}

	stats, err := NewReplayer(reader, h.processor, nil, time.Second, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Read)
	assert.Zero(t, reader.committed)
}
