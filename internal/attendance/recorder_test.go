package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffattendance/internal/queue"
)

type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	stored   []Event
}

func (s *flakySink) InsertEvent(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("connection refused")
	}
	s.stored = append(s.stored, evt)
	return nil
}

func (s *flakySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func newTestRecorder(sink EventSink) *Recorder {
	r := NewRecorder(sink, nil)
	r.backoff = time.Millisecond
	return r
}

func checkInMessage(t *testing.T, recordID string) queue.Message {
	t.Helper()
	evt, err := NewEvent(EventCheckIn, Record{ID: recordID, UserID: "u-1", Date: "2024-03-04"}, at(4, 7, 0, 0))
	require.NoError(t, err)
	msg, err := queue.NewMessage(string(evt.Type), evt)
	require.NoError(t, err)
	return msg
}

func TestRecorderStoresEvent(t *testing.T) {
	sink := &flakySink{}
	require.NoError(t, newTestRecorder(sink).Process(context.Background(), checkInMessage(t, "r-1")))
	require.Len(t, sink.stored, 1)
	assert.Equal(t, "r-1", sink.stored[0].RecordID)
	assert.Equal(t, EventCheckIn, sink.stored[0].Type)
}

func TestRecorderRetries(t *testing.T) {
	sink := &flakySink{failures: 2}
	require.NoError(t, newTestRecorder(sink).Process(context.Background(), checkInMessage(t, "r-1")))
	assert.Len(t, sink.stored, 1)

	sink = &flakySink{failures: 5}
	err := newTestRecorder(sink).Process(context.Background(), checkInMessage(t, "r-1"))
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 3, sink.calls)
}

func TestRecorderRejectsUnknownAndMalformed(t *testing.T) {
	sink := &flakySink{}
	r := newTestRecorder(sink)
	assert.Error(t, r.Process(context.Background(), queue.Message{Type: "checkin", Body: []byte(`{}`)}))
	assert.Error(t, r.Process(context.Background(), queue.Message{Type: "check_in", Body: []byte(`not json`)}))
	assert.Error(t, r.Process(context.Background(), queue.Message{Type: "check_in", Body: []byte(`{"id":""}`)}))
	assert.Zero(t, sink.calls)
}

func TestRecorderKeepsInMemoryQueueFlowing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(1)
	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	sink := &flakySink{}
	done := make(chan struct{})
	go func() {
		newTestRecorder(sink).Run(ctx, messages)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		pubCtx, pubCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := q.Publish(pubCtx, checkInMessage(t, "r-"+string(rune('a'+i))))
		pubCancel()
		require.NoError(t, err, "publish %d", i)
	}
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "unknown"}))

	require.Eventually(t, func() bool { return sink.count() == 5 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
