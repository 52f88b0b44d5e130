package transaction

import "encoding/binary"

// Ledger file layout:
//
//	| 8 bytes: counter (big-endian) | 1 byte status of XID 1 | 1 byte status of XID 2 | ...
//
// The counter is the number of XIDs ever allocated, so the file length is
// always HeaderSize + counter*RecordSize.
const (
	HeaderSize = 8
	RecordSize = 1

	// LedgerSuffix is appended to the configured base path.
	LedgerSuffix = ".xid"
)

// LedgerPath returns the backing file name for a base path.
func LedgerPath(base string) string {
	return base + LedgerSuffix
}

// recordOffset returns the file offset of xid's status record. xid must be >= 1.
func recordOffset(xid XID) int64 {
	return HeaderSize + int64(xid-1)*RecordSize
}

// ledgerLength is the exact file length a ledger holding counter records must have.
func ledgerLength(counter uint64) int64 {
	return HeaderSize + int64(counter)*RecordSize
}

// EncodeCounter serializes the header counter.
func EncodeCounter(counter uint64) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf, counter)
	return buf
}

// DecodeCounter parses the header counter. raw must hold at least HeaderSize bytes.
func DecodeCounter(raw []byte) uint64 {
	return binary.BigEndian.Uint64(raw[:HeaderSize])
}

// EncodeState serializes a status record.
func EncodeState(s TransactionState) []byte {
	return []byte{byte(s)}
}

// DecodeState parses a status record and reports whether the byte is a known state.
func DecodeState(raw []byte) (TransactionState, bool) {
	if len(raw) < RecordSize {
		return 0, false
	}
	s := TransactionState(raw[0])
	return s, s.Valid()
}
