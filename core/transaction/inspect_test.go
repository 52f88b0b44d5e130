package transaction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// seed allocates n transactions and finishes them in a fixed pattern:
// xid%3 == 1 committed, xid%3 == 2 aborted, xid%3 == 0 left active.
func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		xid, err := s.Begin()
		require.NoError(t, err)
		switch xid % 3 {
		case 1:
			require.NoError(t, s.Commit(xid))
		case 2:
			require.NoError(t, s.Abort(xid))
		}
	}
}

func expectedState(xid XID) TransactionState {
	switch xid % 3 {
	case 1:
		return TxnStateCommitted
	case 2:
		return TxnStateAborted
	default:
		return TxnStateActive
	}
}

func TestScan(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()
	seed(t, s, 10)

	var seen []XID
	require.NoError(t, s.Scan(func(xid XID, st TransactionState) bool {
		require.Equal(t, expectedState(xid), st)
		seen = append(seen, xid)
		return true
	}))
	require.Equal(t, []XID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)

	// Stop early.
	seen = seen[:0]
	require.NoError(t, s.Scan(func(xid XID, _ TransactionState) bool {
		seen = append(seen, xid)
		return xid < 4
	}))
	require.Equal(t, []XID{1, 2, 3, 4}, seen)
}

func TestScan_Empty(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	called := false
	require.NoError(t, s.Scan(func(XID, TransactionState) bool {
		called = true
		return true
	}))
	require.False(t, called)
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()
	seed(t, s, 10)

	st, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, Stats{Counter: 10, Active: 3, Committed: 4, Aborted: 3}, st)
}

func TestVerify(t *testing.T) {
	s, base := newTestStore(t)
	seed(t, s, 5)
	require.NoError(t, s.Close())

	counter, err := Verify(base)
	require.NoError(t, err)
	require.Equal(t, uint64(5), counter)

	// A bad status byte is caught even though the length is right.
	f, err := os.OpenFile(LedgerPath(base), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0x7f}, recordOffset(4))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Verify(base)
	require.ErrorIs(t, err, ErrBadRecord)
	require.True(t, IsFatal(err))

	_, err = Verify(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrLedgerNotFound)
}

func TestRepair(t *testing.T) {
	t.Run("healthy ledger is left alone", func(t *testing.T) {
		s, base := newTestStore(t)
		seed(t, s, 3)
		require.NoError(t, s.Close())

		report, err := Repair(base)
		require.NoError(t, err)
		require.Equal(t, RepairReport{Counter: 3}, report)
		require.Equal(t, ledgerLength(3), fileSize(t, base))
	})

	t.Run("surplus records are cut", func(t *testing.T) {
		s, base := newTestStore(t)
		seed(t, s, 3)
		require.NoError(t, s.Close())

		f, err := os.OpenFile(LedgerPath(base), os.O_APPEND|os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = f.Write([]byte{0, 0})
		require.NoError(t, err)
		require.NoError(t, f.Close())

		report, err := Repair(base)
		require.NoError(t, err)
		require.Equal(t, RepairReport{Counter: 3, TruncatedBytes: 2}, report)

		counter, err := Verify(base)
		require.NoError(t, err)
		require.Equal(t, uint64(3), counter)
	})

	t.Run("missing records cannot be repaired", func(t *testing.T) {
		s, base := newTestStore(t)
		seed(t, s, 3)
		require.NoError(t, s.Close())
		require.NoError(t, os.Truncate(LedgerPath(base), ledgerLength(2)))

		_, err := Repair(base)
		require.ErrorIs(t, err, ErrBadLedger)
		require.Equal(t, ledgerLength(2), fileSize(t, base))
	})

	t.Run("file shorter than header", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "tm")
		require.NoError(t, os.WriteFile(LedgerPath(base), []byte{0, 0, 0}, 0o644))

		_, err := Repair(base)
		require.ErrorIs(t, err, ErrBadLedger)
	})
}

func TestBackup(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()
	seed(t, s, 7)

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, s.Backup(context.Background(), dst, 0))

	c, err := Open(dst)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, uint64(7), c.Counter())
	for xid := XID(1); xid <= 7; xid++ {
		requireState(t, c, xid, expectedState(xid))
	}

	// The source keeps working after the copy.
	xid, err := s.Begin()
	require.NoError(t, err)
	require.Equal(t, XID(8), xid)

	// An existing destination is never overwritten.
	err = s.Backup(context.Background(), dst, 0)
	require.Error(t, err)
	require.False(t, IsFatal(err))
}

func TestBackup_Throttled(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()
	seed(t, s, 4)

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, s.Backup(context.Background(), dst, 1<<20))

	counter, err := Verify(dst)
	require.NoError(t, err)
	require.Equal(t, uint64(4), counter)
}

func TestStore_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	base := filepath.Join(t.TempDir(), "tm")
	s, err := Create(base, WithMeter(provider.Meter("test")))
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		_, err := s.Begin()
		require.NoError(t, err)
	}
	require.NoError(t, s.Commit(1))
	require.NoError(t, s.Commit(2))
	require.NoError(t, s.Abort(3))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	var syncs uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					key := m.Name
					if state, ok := dp.Attributes.Value("state"); ok {
						key += "/" + state.AsString()
					}
					sums[key] += dp.Value
				}
			case metricdata.Histogram[float64]:
				if m.Name == "xidledger.sync.duration" {
					for _, dp := range data.DataPoints {
						syncs += dp.Count
					}
				}
			}
		}
	}

	require.Equal(t, int64(5), sums["xidledger.begin_total"])
	require.Equal(t, int64(2), sums["xidledger.transition_total/committed"])
	require.Equal(t, int64(1), sums["xidledger.transition_total/aborted"])
	// Two syncs per allocation, one per transition.
	require.Equal(t, uint64(5*2+3), syncs)
}
