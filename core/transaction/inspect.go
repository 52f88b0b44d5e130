package transaction

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sushant-115/xidledger/core/storage_engine/blockfile"
	"github.com/sushant-115/xidledger/core/storage_engine/common"
)

// Operator tooling. Nothing here runs on its own; Open never repairs.

// Stats summarizes a ledger.
type Stats struct {
	Counter   uint64
	Active    uint64
	Committed uint64
	Aborted   uint64
}

// Scan calls fn for every allocated XID in ascending order until fn returns
// false. Records are read straight from the file.
func (s *Store) Scan(fn func(XID, TransactionState) bool) error {
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.table.forEachRecord(s.alloc.current(), fn); err != nil {
		return s.fail("scan", err)
	}
	return nil
}

// Stats counts records by state.
func (s *Store) Stats() (Stats, error) {
	if err := s.usable(); err != nil {
		return Stats{}, err
	}
	st := Stats{Counter: s.alloc.current()}
	err := s.table.forEachRecord(st.Counter, func(_ XID, state TransactionState) bool {
		switch state {
		case TxnStateActive:
			st.Active++
		case TxnStateCommitted:
			st.Committed++
		case TxnStateAborted:
			st.Aborted++
		}
		return true
	})
	if err != nil {
		return Stats{}, s.fail("stats", err)
	}
	return st, nil
}

// Backup copies the ledger to dstBase+LedgerSuffix, throttled to bytesPerSec
// (0 for no limit). Allocation is blocked for the duration of the copy so the
// copy always satisfies the length invariant; commits and aborts carry on.
func (s *Store) Backup(ctx context.Context, dstBase string, bytesPerSec int64) error {
	if err := s.usable(); err != nil {
		return err
	}
	dst := LedgerPath(dstBase)
	var res common.CopyResult
	err := s.alloc.frozen(func(counter uint64) error {
		var err error
		res, err = common.CopyThrottled(ctx, s.path, dst, ledgerLength(counter), bytesPerSec)
		return err
	})
	if err != nil {
		return fmt.Errorf("backup %s to %s: %w", s.path, dst, err)
	}
	if _, err := verifyFile(dst); err != nil {
		return err
	}
	s.logger.Info("Ledger backed up",
		zap.String("dst", dst),
		zap.Int64("bytes", res.Bytes),
		zap.String("sha256", res.SHA256))
	return nil
}

// Verify checks the ledger at base+LedgerSuffix without modifying it: the
// length invariant and every status byte. It returns the header counter.
func Verify(base string) (uint64, error) {
	return verifyFile(LedgerPath(base))
}

func verifyFile(path string) (uint64, error) {
	f, err := blockfile.OpenReadOnly(path)
	if err != nil {
		return 0, setupError("verify", path, err)
	}
	defer f.Close()

	table := &statusTable{file: f, metrics: noopMetrics()}
	counter, err := table.checkLength()
	if err != nil {
		return 0, &FatalError{Op: "verify", Path: path, Err: err}
	}
	if err := table.forEachRecord(counter, func(XID, TransactionState) bool { return true }); err != nil {
		return 0, &FatalError{Op: "verify", Path: path, Err: err}
	}
	return counter, nil
}

// RepairReport describes what Repair did.
type RepairReport struct {
	Counter        uint64 // header counter, unchanged by repair
	TruncatedBytes int64  // surplus bytes removed past the last advertised record
}

// Repair fixes a ledger whose file is longer than its header advertises,
// which is what a crash between the record write and the header write of
// Begin leaves behind. The surplus records belong to XIDs that were never
// returned to anyone, so they are cut off. A file shorter than its header
// claims cannot be repaired.
func Repair(base string, opts ...Option) (RepairReport, error) {
	o := buildOptions(opts)
	path := LedgerPath(base)
	f, err := blockfile.Open(path)
	if err != nil {
		return RepairReport{}, setupError("repair", path, err)
	}
	defer f.Close()

	fail := func(err error) (RepairReport, error) {
		return RepairReport{}, &FatalError{Op: "repair", Path: path, Err: err}
	}

	size, err := f.Size()
	if err != nil {
		return fail(err)
	}
	if size < HeaderSize {
		return fail(fmt.Errorf("%w: file has %d bytes, header needs %d", ErrBadLedger, size, HeaderSize))
	}
	table := &statusTable{file: f, metrics: noopMetrics()}
	counter, err := table.readCounter()
	if err != nil {
		return fail(err)
	}
	if counter > maxCounter || ledgerLength(counter) > size {
		return fail(fmt.Errorf("%w: header counter %d, file has only %d bytes", ErrBadLedger, counter, size))
	}

	report := RepairReport{Counter: counter, TruncatedBytes: size - ledgerLength(counter)}
	if report.TruncatedBytes == 0 {
		return report, nil
	}
	if err := f.Truncate(ledgerLength(counter)); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	o.logger.Warn("Ledger repaired",
		zap.String("ledger", path),
		zap.Uint64("counter", counter),
		zap.Int64("truncated_bytes", report.TruncatedBytes))
	return report, nil
}
