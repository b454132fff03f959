/*
Package data contains the common data structures used throughout budgetbot.

An [Entry] is one ledger row (an expense or an income). [EntryFromRow] and
[Entry.ToRow] convert entries to and from the seven column spreadsheet layout
that every ledger backend stores. [Config] holds the user facing settings
(currencies, categories, budgets) and [Event] is what gets published on the
bus when the ledger changes.
*/
package data
