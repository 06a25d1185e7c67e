// Package failures records rejected and failed callbacks for forensic replay.
// Recording never blocks or fails the request path.
package failures

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Record is one rejected or failed callback.
type Record struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Method     string            `json:"request_method"`
	URI        string            `json:"request_uri"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	OrderID    string            `json:"order_id,omitempty"`
	Fields     map[string]string `json:"request_body,omitempty"`
	RawInput   string            `json:"raw_input,omitempty"`
	Form       url.Values        `json:"post_data,omitempty"`
	Query      url.Values        `json:"get_data,omitempty"`
}

// Sink persists records. Implementations may block; the recorder calls them off
// the request path.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

type Recorder struct {
	sinks   []Sink
	queue   chan Record
	logger  *zap.Logger
	onDrop  func()
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewRecorder(logger *zap.Logger, buffer int, sinks ...Sink) *Recorder {
	if buffer <= 0 {
		buffer = 1
	}
	return &Recorder{
		sinks:   sinks,
		queue:   make(chan Record, buffer),
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// OnDrop registers a callback invoked when a record is dropped on a full queue.
func (r *Recorder) OnDrop(fn func()) {
	r.onDrop = fn
}

// Record enqueues rec without blocking. It is safe to call on a nil Recorder.
func (r *Recorder) Record(rec Record) {
	if r == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("Failure record dropped, queue full",
			zap.String("kind", rec.Kind),
			zap.String("record_id", rec.ID),
		)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains the queue.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
}

// Wait blocks until the delivery loop has drained and exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) loop(ctx context.Context) {
	for {
		select {
		case rec := <-r.queue:
			r.deliver(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.deliver(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) deliver(rec Record) {
	for _, sink := range r.sinks {
		if err := r.write(sink, rec); err != nil {
			r.logger.Error("Failed to write failure record",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
		}
	}
}

func (r *Recorder) write(sink Sink, rec Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panic: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return sink.Write(ctx, rec)
}
