package lock

import "errors"

// Lock-related errors.
var (
	// ErrAccountBusy is returned when a reconciliation run is already in
	// flight for the same account.
	ErrAccountBusy = errors.New("account reconciliation already in progress")
)
