package data

import "errors"

// ErrNoEntries is returned when a ledger operation needs at least one entry
var ErrNoEntries = errors.New("no entries")

// ErrEntryChanged is returned when a ledger row no longer matches the entry
// the caller wants to delete
var ErrEntryChanged = errors.New("entry changed")

// ErrUnauthorized is returned for users not listed in the config
var ErrUnauthorized = errors.New("user not authorized")

// ValidationError is returned when user input is rejected. The message is
// meant to be shown to the user as is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}
