// Package store implements the ledgers budgetbot records entries in. The
// default ledger is a Google Sheet with one worksheet for expenses and one
// for incomes. A SQLite ledger with the same row layout is available for
// running without Google credentials.
package store
