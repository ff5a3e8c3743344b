package multisig

import (
	"context"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testAddress returns a distinct non-zero address for every n.
func testAddress(n byte) Address {
	var addr Address
	addr[0] = 0xaa
	addr[AddressLength-1] = n
	return addr
}

var (
	owner    = testAddress(1)
	account1 = testAddress(2)
	account2 = testAddress(3)
	account3 = testAddress(4)
	account4 = testAddress(5)
	outsider = testAddress(6)

	testToken    = testAddress(0x70)
	testRegistry = testAddress(0xfa)
)

type transferCall struct {
	Token, From, To Address
	Amount          decimal.Decimal
}

// recordingLedger is a TokenLedger that remembers every transfer.
type recordingLedger struct {
	mu    sync.Mutex
	calls []transferCall
	err   error
}

func (l *recordingLedger) Transfer(_ context.Context, token, from, to Address, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}

	l.calls = append(l.calls, transferCall{Token: token, From: from, To: to, Amount: amount})
	return nil
}

func (l *recordingLedger) Calls() []transferCall {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]transferCall(nil), l.calls...)
}
