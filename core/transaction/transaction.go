package transaction

import "fmt"

// XID identifies a transaction. XIDs are handed out by Begin starting at 1
// and are never reused.
type XID uint64

// SuperXID is the reserved super transaction. It is never stored in the
// ledger and is always considered committed.
const SuperXID XID = 0

// TransactionState is the persisted lifecycle state of a transaction.
// The numeric values are the on-disk status bytes.
type TransactionState byte

const (
	TxnStateActive    TransactionState = iota // Transaction has begun and not yet finished
	TxnStateCommitted                         // Transaction committed
	TxnStateAborted                           // Transaction aborted
)

// Valid reports whether s is one of the known states.
func (s TransactionState) Valid() bool {
	return s <= TxnStateAborted
}

func (s TransactionState) String() string {
	switch s {
	case TxnStateActive:
		return "active"
	case TxnStateCommitted:
		return "committed"
	case TxnStateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("invalid(%d)", byte(s))
	}
}
