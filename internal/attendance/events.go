package attendance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names an audit event.
type EventType string

const (
	EventCheckIn       EventType = "check_in"
	EventCheckOut      EventType = "check_out"
	EventRecordUpdated EventType = "record_updated"
)

// Event is an audit trail entry describing a change to a record. The API
// publishes events on the queue and the worker persists them.
type Event struct {
	ID         string          `json:"id"`
	RecordID   string          `json:"record_id"`
	UserID     string          `json:"user_id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// NewEvent snapshots rec as an event of type t.
func NewEvent(t EventType, rec Record, at time.Time) (Event, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		RecordID:   rec.ID,
		UserID:     rec.UserID,
		Type:       t,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}, nil
}
