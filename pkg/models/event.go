package models

import (
	"encoding/json"
	"time"
)

// EventKind identifies the type of a broadcast event
type EventKind string

const (
	EventLog          EventKind = "log"
	EventStatus       EventKind = "status"
	EventScreenshot   EventKind = "screenshot"
	EventRequestInput EventKind = "request_input"
	EventResult       EventKind = "result"
)

// Event is an immutable record delivered to every observer subscribed to
// a session. Fields carries kind-specific data and is flattened into the
// top-level JSON object on the wire.
type Event struct {
	Kind      EventKind
	SessionID string
	Fields    map[string]interface{}
	Timestamp time.Time
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, sessionID string, fields map[string]interface{}) Event {
	return Event{
		Kind:      kind,
		SessionID: sessionID,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// MarshalJSON flattens Fields so observers see
// {type, sessionId, ...fields, timestamp}.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = string(e.Kind)
	out["sessionId"] = e.SessionID
	out["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	return json.Marshal(out)
}
