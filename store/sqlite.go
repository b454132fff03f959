package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simpleiot/budgetbot/data"

	// tell sql to use sqlite
	_ "modernc.org/sqlite"
)

// Sqlite is a ledger kept in a local SQLite file. Cells are stored as text
// in the same layout as the spreadsheet rows.
type Sqlite struct {
	db *sql.DB
}

// NewSqlite opens or creates a SQLite ledger. Use ":memory:" for a
// throwaway ledger.
func NewSqlite(dbFile string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, err
	}

	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				date TEXT,
				value TEXT,
				description TEXT,
				category TEXT,
				currency TEXT,
				year_month TEXT,
				username TEXT)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("Error creating entries table: %v", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS entries_kind ON entries(kind, id)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("Error creating entries index: %v", err)
	}

	return &Sqlite{db: db}, nil
}

// Entries returns all entries of kind ordered by id
func (s *Sqlite) Entries(ctx context.Context, kind data.Kind) ([]data.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, value, description, category,
		currency, year_month, username FROM entries WHERE kind=? ORDER BY id`, kind.String())
	if err != nil {
		return nil, fmt.Errorf("Error querying entries: %w", err)
	}
	defer rows.Close()

	var ret []data.Entry

	for rows.Next() {
		var id int
		cells := make([]string, 7)
		err := rows.Scan(&id, &cells[0], &cells[1], &cells[2], &cells[3], &cells[4],
			&cells[5], &cells[6])
		if err != nil {
			return nil, fmt.Errorf("Error scanning entry: %w", err)
		}
		ret = append(ret, data.EntryFromRow(kind, id, cells))
	}

	return ret, rows.Err()
}

// Append inserts e
func (s *Sqlite) Append(ctx context.Context, e data.Entry) (data.Entry, error) {
	c := e.ToRow()
	res, err := s.db.ExecContext(ctx, `INSERT INTO entries(kind, date, value, description,
		category, currency, year_month, username) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind.String(), c[0], c[1], c[2], c[3], c[4], c[5], c[6])
	if err != nil {
		return e, fmt.Errorf("Error inserting entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return e, fmt.Errorf("Error getting entry id: %w", err)
	}

	e.Row = int(id)
	return e, nil
}

// Delete removes e if the stored row still matches
func (s *Sqlite) Delete(ctx context.Context, e data.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cells := make([]string, 7)
	err = tx.QueryRowContext(ctx, `SELECT date, value, description, category, currency,
		year_month, username FROM entries WHERE id=? AND kind=?`, e.Row, e.Kind.String()).
		Scan(&cells[0], &cells[1], &cells[2], &cells[3], &cells[4], &cells[5], &cells[6])
	if errors.Is(err, sql.ErrNoRows) {
		return data.ErrEntryChanged
	}
	if err != nil {
		return fmt.Errorf("Error reading entry: %w", err)
	}

	if !data.EntryFromRow(e.Kind, e.Row, cells).SameRow(e) {
		return data.ErrEntryChanged
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM entries WHERE id=?`, e.Row)
	if err != nil {
		return fmt.Errorf("Error deleting entry: %w", err)
	}

	return tx.Commit()
}

// Close the database
func (s *Sqlite) Close() error {
	return s.db.Close()
}
