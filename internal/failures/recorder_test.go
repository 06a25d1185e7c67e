package failures

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memSink struct {
	mu      sync.Mutex
	records []Record
	err     error
	panics  bool
}

func (s *memSink) Write(_ context.Context, rec Record) error {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func TestRecorder_DeliversToAllSinksAndSurvivesFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	good := &memSink{}
	failing := &memSink{err: errors.New("disk full")}
	panicking := &memSink{panics: true}

	r := NewRecorder(zap.New(core), 8, panicking, failing, good)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	r.Record(Record{Kind: "authentication_failed", Message: "signature mismatch"})
	cancel()
	r.Wait()

	require.Len(t, good.records, 1)
	rec := good.records[0]
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, "authentication_failed", rec.Kind)
	assert.Equal(t, 2, logs.FilterMessage("Failed to write failure record").Len())
}

func TestRecorder_NeverBlocksWhenFull(t *testing.T) {
	r := NewRecorder(zap.NewNop(), 1)
	dropped := 0
	r.OnDrop(func() { dropped++ })

	r.Record(Record{Kind: "a"})
	r.Record(Record{Kind: "b"})
	r.Record(Record{Kind: "c"})

	assert.Equal(t, 2, dropped)
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() { r.Record(Record{}) })
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)

	rec := Record{ID: "rec-1", Kind: "unknown_order", Fields: map[string]string{"order_id": "5_1"}}
	require.NoError(t, sink.Write(context.Background(), rec))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("rec-1"), w.msgs[0].Key)

	var decoded Record
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "5_1", decoded.Fields["order_id"])
	assert.Equal(t, "unknown_order", decoded.Kind)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Write(context.Background(), Record{ID: "x", Kind: "malformed_request"}))
	entries := logs.FilterMessage("Callback failure").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "malformed_request", entries[0].ContextMap()["kind"])
}
