package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"staffattendance/internal/queue"
)

// EventSink persists audit events.
type EventSink interface {
	InsertEvent(ctx context.Context, evt Event) error
}

// Recorder drains queued audit events into an EventSink. The worker runs one
// against Redis; the API runs one in-process when the queue is in memory.
type Recorder struct {
	sink     EventSink
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

// NewRecorder creates a Recorder that retries each insert three times.
func NewRecorder(sink EventSink, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sink: sink, log: log, attempts: 3, backoff: 200 * time.Millisecond}
}

// Run stores messages until the channel closes.
func (r *Recorder) Run(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		if err := r.Process(ctx, msg); err != nil {
			r.log.Error("drop event", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		r.log.Debug("event stored", zap.String("type", msg.Type))
	}
}

// Process decodes and stores one message.
func (r *Recorder) Process(ctx context.Context, msg queue.Message) error {
	switch EventType(msg.Type) {
	case EventCheckIn, EventCheckOut, EventRecordUpdated:
	default:
		return fmt.Errorf("unknown event type %q", msg.Type)
	}
	var evt Event
	if err := msg.Decode(&evt); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if evt.ID == "" || evt.RecordID == "" {
		return errors.New("event missing id or record id")
	}

	// InsertEvent ignores ids it already stored.
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = r.sink.InsertEvent(ctx, evt); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * r.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("insert event %s: %w", evt.ID, err)
}
