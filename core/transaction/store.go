// Package transaction is the transaction-identity and transaction-status
// authority of the storage engine. A Store hands out XIDs, persists the
// active/committed/aborted state of each one in a fixed-format ledger file,
// and answers status queries for the rest of the engine.
//
// Every mutating call is durable when it returns. Any corruption or I/O
// failure is reported as a *FatalError, after which the Store refuses all
// further work; the process owning it is expected to stop.
package transaction

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/sushant-115/xidledger/core/storage_engine/blockfile"
	internaltelemetry "github.com/sushant-115/xidledger/internal/telemetry"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *zap.Logger
	meter  metric.Meter
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter sets the OpenTelemetry meter used for ledger metrics.
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store is an open transaction ledger. It is safe for concurrent use.
type Store struct {
	path    string
	file    storage
	table   *statusTable
	alloc   *allocator
	logger  *zap.Logger
	metrics *internaltelemetry.LedgerMetrics

	closed atomic.Bool
	failed atomic.Pointer[FatalError]
}

// Create creates a new ledger at base+LedgerSuffix with an empty header.
// The file must not exist yet.
func Create(base string, opts ...Option) (*Store, error) {
	path := LedgerPath(base)
	f, err := blockfile.Create(path)
	if err != nil {
		return nil, setupError("create", path, err)
	}
	if err := initHeader(f); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, &FatalError{Op: "create", Path: path, Err: err}
	}
	return newStore(path, f, "create", opts...)
}

func initHeader(f storage) error {
	if err := f.WriteAt(0, EncodeCounter(0)); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing header: %w", err)
	}
	return nil
}

// Open attaches to an existing ledger at base+LedgerSuffix. The header and
// file length are validated before the store is returned.
func Open(base string, opts ...Option) (*Store, error) {
	path := LedgerPath(base)
	f, err := blockfile.Open(path)
	if err != nil {
		return nil, setupError("open", path, err)
	}
	return newStore(path, f, "open", opts...)
}

func setupError(op, path string, err error) error {
	switch {
	case errors.Is(err, blockfile.ErrFileExists):
		err = fmt.Errorf("%w: %w", ErrLedgerExists, err)
	case errors.Is(err, blockfile.ErrFileNotFound):
		err = fmt.Errorf("%w: %w", ErrLedgerNotFound, err)
	case errors.Is(err, blockfile.ErrNotAccessible), errors.Is(err, blockfile.ErrNotRegular):
		err = fmt.Errorf("%w: %w", ErrLedgerNotAccessible, err)
	}
	return &FatalError{Op: op, Path: path, Err: err}
}

// newStore validates f and wraps it. f is closed if validation fails.
func newStore(path string, f storage, op string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	metrics, err := internaltelemetry.NewLedgerMetrics(o.meter)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("registering ledger metrics: %w", err)
	}

	table := &statusTable{file: f, metrics: metrics}
	counter, err := table.checkLength()
	if err != nil {
		f.Close()
		o.logger.Error("Ledger failed validation", zap.String("ledger", path), zap.Error(err))
		return nil, &FatalError{Op: op, Path: path, Err: err}
	}

	s := &Store{
		path:    path,
		file:    f,
		table:   table,
		alloc:   newAllocator(table, counter),
		metrics: metrics,
		logger: o.logger.With(
			zap.String("ledger", path),
			zap.String("instance", uuid.New().String()),
		),
	}
	s.logger.Info("Ledger ready", zap.String("mode", op), zap.Uint64("counter", counter))
	return s, nil
}

// usable returns the error every operation must fail with once the store is
// closed or poisoned.
func (s *Store) usable() error {
	if fe := s.failed.Load(); fe != nil {
		return fe
	}
	if s.closed.Load() {
		return fmt.Errorf("%s: %w", s.path, ErrClosed)
	}
	return nil
}

// fail poisons the store. The first fatal error wins and is returned from
// then on.
func (s *Store) fail(op string, err error) error {
	fe := &FatalError{Op: op, Path: s.path, Err: err}
	if !s.failed.CompareAndSwap(nil, fe) {
		return s.failed.Load()
	}
	s.metrics.RecordFatal(op)
	s.logger.Error("Ledger is no longer trustworthy", zap.String("op", op), zap.Error(err))
	return fe
}

// Path returns the ledger file name.
func (s *Store) Path() string {
	return s.path
}

// Counter returns the number of XIDs allocated so far, which is also the
// largest XID handed out.
func (s *Store) Counter() uint64 {
	return s.alloc.current()
}

// Begin allocates a new XID and records it as active.
func (s *Store) Begin() (XID, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	xid, err := s.alloc.begin()
	if err != nil {
		return 0, s.fail("begin", err)
	}
	s.metrics.RecordBegin()
	s.logger.Debug("Transaction begun", zap.Uint64("xid", uint64(xid)))
	return xid, nil
}

// Commit marks xid committed.
func (s *Store) Commit(xid XID) error {
	return s.transition("commit", xid, TxnStateCommitted)
}

// Abort marks xid aborted.
func (s *Store) Abort(xid XID) error {
	return s.transition("abort", xid, TxnStateAborted)
}

// transition does not take the allocation lock: each XID owns a distinct
// byte, and callers never finish the same XID twice or concurrently.
func (s *Store) transition(op string, xid XID, state TransactionState) error {
	if err := s.usable(); err != nil {
		return err
	}
	if xid == SuperXID {
		return fmt.Errorf("%s: %w", op, ErrSuperXID)
	}
	if err := s.checkAllocated(xid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.table.writeState(xid, state); err != nil {
		return s.fail(op, err)
	}
	s.metrics.RecordTransition(state.String())
	return nil
}

func (s *Store) checkAllocated(xid XID) error {
	if counter := s.alloc.current(); uint64(xid) > counter {
		return fmt.Errorf("xid %d beyond counter %d: %w", xid, counter, ErrUnknownXID)
	}
	return nil
}

// State reads the persisted state of xid. The super transaction is always
// committed and never touches storage.
func (s *Store) State(xid XID) (TransactionState, error) {
	if xid == SuperXID {
		return TxnStateCommitted, nil
	}
	if err := s.usable(); err != nil {
		return 0, err
	}
	if err := s.checkAllocated(xid); err != nil {
		return 0, fmt.Errorf("status: %w", err)
	}
	st, err := s.table.readState(xid)
	if err != nil {
		return 0, s.fail("status", err)
	}
	return st, nil
}

// IsActive reports whether xid has begun and not finished.
func (s *Store) IsActive(xid XID) (bool, error) {
	return s.is(xid, TxnStateActive)
}

// IsCommitted reports whether xid committed. It is true for SuperXID.
func (s *Store) IsCommitted(xid XID) (bool, error) {
	return s.is(xid, TxnStateCommitted)
}

// IsAborted reports whether xid aborted.
func (s *Store) IsAborted(xid XID) (bool, error) {
	return s.is(xid, TxnStateAborted)
}

func (s *Store) is(xid XID, want TransactionState) (bool, error) {
	st, err := s.State(xid)
	if err != nil {
		return false, err
	}
	return st == want, nil
}

// Close releases the ledger file. Every write has already been synced, so
// Close does not flush. A failure to close is fatal.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", s.path, ErrClosed)
	}
	if err := s.file.Close(); err != nil {
		return s.fail("close", err)
	}
	s.logger.Info("Ledger closed", zap.Uint64("counter", s.alloc.current()))
	return nil
}
