// Package bus defines the NATS subjects ledger events are published on and
// helpers to publish and decode them.
package bus

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/simpleiot/budgetbot/data"
)

// subject layout: budget.entry.<type>.<kind>
const subjectPrefix = "budget.entry"

// SubjectAll matches every ledger event
const SubjectAll = subjectPrefix + ".>"

// Publisher is implemented by *nats.Conn
type Publisher interface {
	Publish(subj string, data []byte) error
}

// SubjectFor builds the subject for an event type and ledger kind
func SubjectFor(typ data.EventType, kind data.Kind) string {
	return subjectPrefix + "." + string(typ) + "." + kind.String()
}

// Subject returns the subject an event is published on
func Subject(e data.Event) string {
	return SubjectFor(e.Type, e.Entry.Kind)
}

// Publish encodes and sends an event
func Publish(p Publisher, e data.Event) error {
	b, err := e.Encode()
	if err != nil {
		return fmt.Errorf("Error encoding event: %w", err)
	}

	err = p.Publish(Subject(e), b)
	if err != nil {
		return fmt.Errorf("Error publishing event: %w", err)
	}

	return nil
}

// Decode decodes a ledger event message and checks it against its subject
func Decode(msg *nats.Msg) (data.Event, error) {
	chunks := strings.Split(msg.Subject, ".")
	if len(chunks) != 4 || chunks[0]+"."+chunks[1] != subjectPrefix {
		return data.Event{}, fmt.Errorf("not a ledger event subject: %v", msg.Subject)
	}

	e, err := data.DecodeEvent(msg.Data)
	if err != nil {
		return e, err
	}

	if string(e.Type) != chunks[2] || e.Entry.Kind.String() != chunks[3] {
		return e, fmt.Errorf("event %v does not match subject %v", e.Type, msg.Subject)
	}

	return e, nil
}
