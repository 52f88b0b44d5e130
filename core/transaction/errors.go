package transaction

import (
	"errors"
	"fmt"
)

// --- Error Definitions ---

var (
	// Setup errors.
	ErrLedgerExists        = errors.New("ledger file already exists")
	ErrLedgerNotFound      = errors.New("ledger file not found")
	ErrLedgerNotAccessible = errors.New("ledger file is not readable and writable")

	// Corruption errors. These always reach callers wrapped in a *FatalError.
	ErrBadLedger = errors.New("ledger length does not match header counter")
	ErrBadRecord = errors.New("invalid transaction status byte")

	// Caller errors. The store stays usable after these.
	ErrSuperXID   = errors.New("super transaction cannot change state")
	ErrUnknownXID = errors.New("xid was never allocated")
	ErrClosed     = errors.New("ledger is closed")
)

// FatalError is returned when the ledger can no longer be trusted: a corrupt
// file, or a failed read, write, sync or close. Once a store has returned a
// FatalError every later operation returns the same error.
type FatalError struct {
	Op   string // operation that failed
	Path string // ledger file
	Err  error  // underlying cause
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ledger %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err, or any error it wraps, is a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
