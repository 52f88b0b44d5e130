package transaction

import (
	"fmt"
	"time"

	internaltelemetry "github.com/sushant-115/xidledger/internal/telemetry"
)

// storage is the random-access file the ledger lives in.
// *blockfile.File implements it.
type storage interface {
	ReadAt(off int64, n int) ([]byte, error)
	WriteAt(off int64, data []byte) error
	Sync() error
	Size() (int64, error)
	Truncate(size int64) error
	Close() error
}

func noopMetrics() *internaltelemetry.LedgerMetrics {
	m, _ := internaltelemetry.NewLedgerMetrics(nil)
	return m
}

// statusTable reads and writes the header and the per-XID status records.
// Every write is followed by a sync before it returns.
type statusTable struct {
	file    storage
	metrics *internaltelemetry.LedgerMetrics
}

func (t *statusTable) sync() error {
	start := time.Now()
	err := t.file.Sync()
	t.metrics.RecordSync(time.Since(start))
	return err
}

func (t *statusTable) readCounter() (uint64, error) {
	raw, err := t.file.ReadAt(0, HeaderSize)
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	return DecodeCounter(raw), nil
}

func (t *statusTable) writeCounter(counter uint64) error {
	if err := t.file.WriteAt(0, EncodeCounter(counter)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := t.sync(); err != nil {
		return fmt.Errorf("syncing header: %w", err)
	}
	return nil
}

func (t *statusTable) readState(xid XID) (TransactionState, error) {
	raw, err := t.file.ReadAt(recordOffset(xid), RecordSize)
	if err != nil {
		return 0, fmt.Errorf("reading status of xid %d: %w", xid, err)
	}
	s, ok := DecodeState(raw)
	if !ok {
		return 0, fmt.Errorf("%w: xid %d holds 0x%02x", ErrBadRecord, xid, raw[0])
	}
	return s, nil
}

func (t *statusTable) writeState(xid XID, s TransactionState) error {
	if err := t.file.WriteAt(recordOffset(xid), EncodeState(s)); err != nil {
		return fmt.Errorf("writing status of xid %d: %w", xid, err)
	}
	if err := t.sync(); err != nil {
		return fmt.Errorf("syncing status of xid %d: %w", xid, err)
	}
	return nil
}

// checkLength enforces the length invariant against the current header.
func (t *statusTable) checkLength() (uint64, error) {
	size, err := t.file.Size()
	if err != nil {
		return 0, err
	}
	if size < HeaderSize {
		return 0, fmt.Errorf("%w: file has %d bytes, header needs %d", ErrBadLedger, size, HeaderSize)
	}
	counter, err := t.readCounter()
	if err != nil {
		return 0, err
	}
	if counter > maxCounter || ledgerLength(counter) != size {
		return 0, fmt.Errorf("%w: header counter %d, file has %d bytes", ErrBadLedger, counter, size)
	}
	return counter, nil
}

// maxCounter keeps ledgerLength within int64.
const maxCounter = (1<<63 - 1 - HeaderSize) / RecordSize

// scanChunk bounds a single read while walking records.
const scanChunk = 64 * 1024

// forEachRecord walks records 1..counter in file order. fn returning false stops the walk.
func (t *statusTable) forEachRecord(counter uint64, fn func(XID, TransactionState) bool) error {
	for first := uint64(1); first <= counter; first += scanChunk {
		n := counter - first + 1
		if n > scanChunk {
			n = scanChunk
		}
		raw, err := t.file.ReadAt(recordOffset(XID(first)), int(n)*RecordSize)
		if err != nil {
			return fmt.Errorf("reading records from xid %d: %w", first, err)
		}
		for i := uint64(0); i < n; i++ {
			xid := XID(first + i)
			s, ok := DecodeState(raw[i*RecordSize:])
			if !ok {
				return fmt.Errorf("%w: xid %d holds 0x%02x", ErrBadRecord, xid, raw[i*RecordSize])
			}
			if !fn(xid, s) {
				return nil
			}
		}
	}
	return nil
}
