package client

import (
	"fmt"
	"log"

	natsgo "github.com/nats-io/nats.go"
	"github.com/simpleiot/budgetbot/bus"
)

// String converts a ledger event message to a string
func String(msg *natsgo.Msg) (string, error) {
	e, err := bus.Decode(msg)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%v: %v (user %v, id %v)", e.Time.Format("2006-01-02 15:04:05"),
		e, e.UserID, e.ID), nil
}

// Dump displays a ledger event message
func Dump(msg *natsgo.Msg) {
	s, err := String(msg)
	if err != nil {
		log.Printf("Error decoding %v: %v", msg.Subject, err)
		return
	}

	log.Println(s)
}

// Log prints every ledger event until the returned subscription is
// unsubscribed
func Log(nc *natsgo.Conn) (*natsgo.Subscription, error) {
	sub, err := nc.Subscribe(bus.SubjectAll, Dump)
	if err != nil {
		return nil, fmt.Errorf("Error subscribing to ledger events: %w", err)
	}

	return sub, nil
}
