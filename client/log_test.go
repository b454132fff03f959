package client

import (
	"strings"
	"testing"

	natsgo "github.com/nats-io/nats.go"
	"github.com/simpleiot/budgetbot/bus"
	"github.com/simpleiot/budgetbot/data"
)

type msgPublisher struct {
	msg *natsgo.Msg
}

func (p *msgPublisher) Publish(subj string, d []byte) error {
	p.msg = &natsgo.Msg{Subject: subj, Data: d}
	return nil
}

func TestString(t *testing.T) {
	p := &msgPublisher{}
	e := data.NewEvent(data.EventAdded, expense("2024-05-02", "100.5", "Food", "RSD"), 7)

	err := bus.Publish(p, e)
	if err != nil {
		t.Fatal("Error publishing: ", err)
	}

	s, err := String(p.msg)
	if err != nil {
		t.Fatal("Error converting: ", err)
	}

	for _, exp := range []string{"added expense", "2024-05-02 100.5 RSD Food (test) by ana", "user 7", e.ID} {
		if !strings.Contains(s, exp) {
			t.Errorf("%q missing from %q", exp, s)
		}
	}

	_, err = String(&natsgo.Msg{Subject: "budget.entry.added", Data: p.msg.Data})
	if err == nil {
		t.Error("expected error for a bad subject")
	}
}
