package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/simpleiot/budgetbot/data"
	"github.com/simpleiot/budgetbot/system"
)

// Ledger is where entries are kept. Entries returns rows in storage order,
// oldest first.
type Ledger interface {
	Entries(ctx context.Context, kind data.Kind) ([]data.Entry, error)
	// Append stores e and returns it with Row filled in
	Append(ctx context.Context, e data.Entry) (data.Entry, error)
	// Delete removes exactly e. If the stored row at e.Row no longer holds
	// e, data.ErrEntryChanged is returned and nothing is deleted.
	Delete(ctx context.Context, e data.Entry) error
	Close() error
}

// Type of ledger backend
type Type string

// define valid ledger types
const (
	TypeSheets Type = "sheets"
	TypeSqlite Type = "sqlite"
)

// Params are used to configure a ledger
type Params struct {
	Type       Type
	SqliteFile string
	Sheets     SheetsOptions
	// number of connection attempts, defaults to 3
	Retries int
	// max wait between attempts, defaults to 8s
	MaxBackoff time.Duration
}

// NewLedger opens the ledger described by p. Connecting to Google Sheets is
// retried with an exponential backoff.
func NewLedger(ctx context.Context, p Params) (Ledger, error) {
	switch p.Type {
	case TypeSqlite:
		return NewSqlite(p.SqliteFile)
	case TypeSheets, "":
	default:
		return nil, fmt.Errorf("Unknown ledger type: %v", p.Type)
	}

	retries := p.Retries
	if retries <= 0 {
		retries = 3
	}

	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 8 * time.Second
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		var l *Sheets
		l, err = NewSheets(ctx, p.Sheets)
		if err == nil {
			log.Println("Connected to Google Sheets")
			return l, nil
		}

		log.Println("Error connecting to Google Sheets: ", err)

		if attempt == retries-1 {
			break
		}

		log.Printf("Retry %v/%v connecting to Google Sheets\n", attempt+1, retries)
		if serr := system.Sleep(ctx, system.ExpBackoff(attempt, maxBackoff)); serr != nil {
			return nil, serr
		}
	}

	return nil, err
}

// Last returns up to n of the most recent entries, oldest first
func Last(ctx context.Context, l Ledger, kind data.Kind, n int) ([]data.Entry, error) {
	entries, err := l.Entries(ctx, kind)
	if err != nil {
		return nil, err
	}

	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	return entries, nil
}

// LastEntry returns the most recent entry, or data.ErrNoEntries if the
// ledger is empty
func LastEntry(ctx context.Context, l Ledger, kind data.Kind) (data.Entry, error) {
	entries, err := l.Entries(ctx, kind)
	if err != nil {
		return data.Entry{}, err
	}

	if len(entries) == 0 {
		return data.Entry{}, data.ErrNoEntries
	}

	return entries[len(entries)-1], nil
}
