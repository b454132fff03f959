package client

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/simpleiot/budgetbot/analytics"
	"github.com/simpleiot/budgetbot/bus"
	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/store"
)

// Alerter watches added expenses and notifies when a monthly budget is
// exceeded. Each budget alerts at most once per month.
type Alerter struct {
	nc        *nats.Conn
	ledger    store.Ledger
	notifiers []Notifier
	stop      chan struct{}
	stopOnce  sync.Once

	lock   sync.Mutex
	config data.Config

	// ym|category|currency keys already alerted
	sent map[string]bool
}

// NewAlerter creates a budget alerter
func NewAlerter(nc *nats.Conn, ledger store.Ledger, config data.Config, notifiers ...Notifier) *Alerter {
	return &Alerter{
		nc:        nc,
		ledger:    ledger,
		notifiers: notifiers,
		stop:      make(chan struct{}),
		config:    config,
		sent:      make(map[string]bool),
	}
}

// SetConfig replaces the budgets and alert recipients
func (a *Alerter) SetConfig(c data.Config) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.config = c
}

func (a *Alerter) getConfig() data.Config {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.config
}

// Run subscribes to added expenses and blocks until stopped
func (a *Alerter) Run() error {
	msgs := make(chan *nats.Msg, 64)
	sub, err := a.nc.ChanSubscribe(bus.SubjectFor(data.EventAdded, data.KindExpense), msgs)
	if err != nil {
		return fmt.Errorf("Error subscribing to expenses: %w", err)
	}

	defer func() {
		err := sub.Unsubscribe()
		if err != nil {
			log.Println("Error unsubscribing alerter: ", err)
		}
	}()

	for {
		select {
		case <-a.stop:
			return nil
		case msg := <-msgs:
			ev, err := bus.Decode(msg)
			if err != nil {
				log.Println("Alerter: Error decoding event: ", err)
				continue
			}

			err = a.check(ev.Entry)
			if err != nil {
				log.Println("Alerter: ", err)
			}
		}
	}
}

// Stop the alerter
func (a *Alerter) Stop(_ error) {
	a.stopOnce.Do(func() { close(a.stop) })
}

func alertKey(ym, category, currency string) string {
	return ym + "|" + strings.ToLower(category) + "|" + strings.ToUpper(currency)
}

// AlertText is the message sent when a budget is exceeded
func AlertText(b data.Budget, total float64, ym string) string {
	return fmt.Sprintf("⚠️ Budget exceeded: %v %v %v of %v %v in %v",
		b.Category, data.FormatValue(total), b.Currency,
		data.FormatValue(b.Limit), b.Currency, ym)
}

func (a *Alerter) check(e data.Entry) error {
	c := a.getConfig()

	b, ok := c.Budget(e.Category, e.Currency)
	if !ok {
		return nil
	}

	ym := e.YearMonth
	if ym == "" {
		ym = e.Date.Format(data.YearMonthFormat)
	}

	key := alertKey(ym, b.Category, b.Currency)
	if a.sent[key] {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := a.ledger.Entries(ctx, data.KindExpense)
	if err != nil {
		return fmt.Errorf("Error reading expenses: %w", err)
	}

	total := analytics.MonthTotal(entries, b.Category, b.Currency, ym)
	if total <= b.Limit {
		return nil
	}

	a.sent[key] = true

	msg := AlertText(b, total, ym)
	log.Println(msg)

	for _, n := range a.notifiers {
		err := n.Notify(c, msg)
		if err != nil {
			log.Println("Error sending budget alert: ", err)
		}
	}

	return nil
}
