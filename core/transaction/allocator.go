package transaction

import (
	"sync"
	"sync/atomic"
)

// allocator owns the next-XID counter. The mutex covers the whole
// read-counter, write-record, write-header sequence so that no two callers
// can claim the same XID.
type allocator struct {
	mu      sync.Mutex
	counter uint64 // guarded by mu
	table   *statusTable

	// published mirrors counter once both writes of an allocation are
	// durable. Readers use it for range checks without taking mu.
	published atomic.Uint64
}

func newAllocator(table *statusTable, counter uint64) *allocator {
	a := &allocator{counter: counter, table: table}
	a.published.Store(counter)
	return a
}

// begin reserves the next XID. The ACTIVE record is made durable before the
// header advertises it, so a crash in between leaves the header behind the
// records, never ahead of them.
func (a *allocator) begin() (XID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	xid := XID(a.counter + 1)
	if err := a.table.writeState(xid, TxnStateActive); err != nil {
		return 0, err
	}
	if err := a.table.writeCounter(a.counter + 1); err != nil {
		return 0, err
	}
	a.counter++
	a.published.Store(a.counter)
	return xid, nil
}

// current returns the number of XIDs allocated so far.
func (a *allocator) current() uint64 {
	return a.published.Load()
}

// frozen runs fn while no allocation can progress.
func (a *allocator) frozen(fn func(counter uint64) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.counter)
}
