package data

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType describes what happened to a ledger entry
type EventType string

// define valid events
const (
	EventAdded   EventType = "added"
	EventDeleted EventType = "deleted"
)

// Event is published on the bus every time the ledger changes
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Entry  Entry     `json:"entry"`
	UserID int64     `json:"userId"`
	Time   time.Time `json:"time"`
}

// NewEvent creates an event with a fresh ID
func NewEvent(typ EventType, e Entry, userID int64) Event {
	return Event{
		ID:     uuid.New().String(),
		Type:   typ,
		Entry:  e,
		UserID: userID,
		Time:   time.Now(),
	}
}

func (e Event) String() string {
	return fmt.Sprintf("%v %v: %v %v %v %v (%v) by %v", e.Type, e.Entry.Kind,
		e.Entry.DateString(), e.Entry.ValueString(), e.Entry.Currency,
		e.Entry.Category, e.Entry.Description, e.Entry.User)
}

// Encode event for the wire
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent decodes an event received from the wire
func DecodeEvent(b []byte) (Event, error) {
	var ret Event
	err := json.Unmarshal(b, &ret)
	if err != nil {
		return ret, fmt.Errorf("Error decoding event: %w", err)
	}
	return ret, nil
}
