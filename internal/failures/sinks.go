package failures

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// LogSink writes records to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, rec Record) error {
	s.logger.Error("Callback failure",
		zap.String("record_id", rec.ID),
		zap.Time("occurred_at", rec.Timestamp),
		zap.String("kind", rec.Kind),
		zap.String("error_message", rec.Message),
		zap.String("request_method", rec.Method),
		zap.String("request_uri", rec.URI),
		zap.String("remote_addr", rec.RemoteAddr),
		zap.String("order_id", rec.OrderID),
		zap.Any("request_body", rec.Fields),
		zap.String("raw_input", rec.RawInput),
	)
	return nil
}

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink appends records to a Kafka topic, keyed by record id.
type KafkaSink struct {
	writer MessageWriter
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Write(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(rec.Kind)},
		},
	})
}
