package transaction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordOffset(t *testing.T) {
	require.Equal(t, int64(8), recordOffset(1))
	require.Equal(t, int64(9), recordOffset(2))
	require.Equal(t, int64(8+999), recordOffset(1000))
}

func TestLedgerLength(t *testing.T) {
	require.Equal(t, int64(HeaderSize), ledgerLength(0))
	require.Equal(t, int64(HeaderSize+2), ledgerLength(2))
}

func TestLedgerPath(t *testing.T) {
	require.Equal(t, "/data/tm.xid", LedgerPath("/data/tm"))
}

func TestCounterEncoding(t *testing.T) {
	raw := EncodeCounter(0x0102030405060708)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, raw)
	require.Equal(t, uint64(0x0102030405060708), DecodeCounter(raw))

	require.Equal(t, make([]byte, HeaderSize), EncodeCounter(0))
}

func TestStateEncoding(t *testing.T) {
	require.Equal(t, []byte{0}, EncodeState(TxnStateActive))
	require.Equal(t, []byte{1}, EncodeState(TxnStateCommitted))
	require.Equal(t, []byte{2}, EncodeState(TxnStateAborted))

	for _, b := range []byte{0, 1, 2} {
		s, ok := DecodeState([]byte{b})
		require.True(t, ok)
		require.Equal(t, TransactionState(b), s)
	}

	_, ok := DecodeState([]byte{3})
	require.False(t, ok)
	_, ok = DecodeState([]byte{0xff})
	require.False(t, ok)
	_, ok = DecodeState(nil)
	require.False(t, ok)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "active", TxnStateActive.String())
	require.Equal(t, "committed", TxnStateCommitted.String())
	require.Equal(t, "aborted", TxnStateAborted.String())
	require.Equal(t, "invalid(7)", TransactionState(7).String())
}
