package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/failures"
)

// MessageReader is the subset of *kafka.Reader the replayer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ReplayStats summarizes one replay run.
type ReplayStats struct {
	Read     int
	Replayed int
	Skipped  int
	Failed   int
}

// Replayer feeds recorded callback failures back through the pipeline.
type Replayer struct {
	reader  MessageReader
	handler interface {
		Handle(ctx context.Context, req callback.Request) callback.Outcome
	}
	kinds  map[string]bool
	idle   time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewReplayer replays records whose kind is in kinds, or all records when kinds
// is empty. A run ends after idle passes with no new message.
func NewReplayer(reader MessageReader, processor *Processor, kinds []string, idle time.Duration, logger *zap.Logger) *Replayer {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &Replayer{
		reader:  reader,
		handler: processor,
		kinds:   set,
		idle:    idle,
		logger:  logger,
		now:     time.Now,
	}
}

// NewFailureReader builds the consumer for the failure topic.
func NewFailureReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run consumes until the topic is drained or a record written after the run
// started is reached, so failures re-recorded by the replay itself are left for
// the next run.
func (r *Replayer) Run(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats
	started := r.now()

	r.logger.Info("Started replaying callback failures")

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, r.idle)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return stats, nil
			}
			return stats, err
		}
		if msg.Time.After(started) {
			return stats, nil
		}
		stats.Read++

		var rec failures.Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			r.logger.Error("Error unmarshaling failure record", zap.Error(err))
			stats.Skipped++
		} else if len(r.kinds) > 0 && !r.kinds[rec.Kind] {
			stats.Skipped++
		} else {
			outcome := r.handler.Handle(ctx, callback.Request{
				Method:     rec.Method,
				URI:        rec.URI,
				RemoteAddr: rec.RemoteAddr,
				Body:       []byte(rec.RawInput),
				Form:       rec.Form,
				Query:      rec.Query,
			})
			if outcome.OK() {
				stats.Replayed++
			} else {
				stats.Failed++
			}
			r.logger.Info("Replayed callback failure",
				zap.String("record_id", rec.ID),
				zap.String("original_kind", rec.Kind),
				zap.String("outcome", string(outcome.Kind)),
			)
		}

		if err := r.reader.CommitMessages(ctx, msg); err != nil {
			return stats, err
		}
	}
}
