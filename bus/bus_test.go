package bus

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nats-io/nats.go"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/natsserver"
)

func TestSubject(t *testing.T) {
	e := data.NewEvent(data.EventDeleted, data.Entry{Kind: data.KindIncome}, 1)
	if s := Subject(e); s != "budget.entry.deleted.income" {
		t.Error("wrong subject: ", s)
	}

	if s := SubjectFor(data.EventAdded, data.KindExpense); s != "budget.entry.added.expense" {
		t.Error("wrong subject: ", s)
	}
}

func TestPublishDecode(t *testing.T) {
	s, err := natsserver.StartTest(4982)
	if err != nil {
		t.Fatal("Error starting nats server: ", err)
	}
	defer s.Shutdown()

	nc, err := nats.Connect("nats://localhost:4982")
	if err != nil {
		t.Fatal("Error connecting: ", err)
	}
	defer nc.Close()

	sub, err := nc.SubscribeSync(SubjectAll)
	if err != nil {
		t.Fatal("Error subscribing: ", err)
	}

	entry := data.EntryFromRow(data.KindExpense, 5,
		[]string{"2024-05-01", "100", "bread", "Food", "RSD", "2024-05", "ana"})
	e := data.NewEvent(data.EventAdded, entry, 42)

	err = Publish(nc, e)
	if err != nil {
		t.Fatal("Error publishing: ", err)
	}

	msg, err := sub.NextMsg(time.Second)
	if err != nil {
		t.Fatal("Error getting event: ", err)
	}

	if msg.Subject != "budget.entry.added.expense" {
		t.Error("wrong subject: ", msg.Subject)
	}

	got, err := Decode(msg)
	if err != nil {
		t.Fatal("Error decoding: ", err)
	}

	if diff := cmp.Diff(e, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Error("event mismatch (-want +got):\n", diff)
	}
}

func TestDecodeBadSubject(t *testing.T) {
	e := data.NewEvent(data.EventAdded, data.Entry{Kind: data.KindIncome}, 1)
	b, _ := e.Encode()

	_, err := Decode(&nats.Msg{Subject: "budget.entry.added.expense", Data: b})
	if err == nil {
		t.Error("expected error for kind mismatch")
	}

	_, err = Decode(&nats.Msg{Subject: "node.123.points", Data: b})
	if err == nil {
		t.Error("expected error for foreign subject")
	}
}
