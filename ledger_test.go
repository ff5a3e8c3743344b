package multisig

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(openDB(t))

	_, err := l.BalanceOf(ctx, testToken, owner)
	require.ErrorIs(t, err, ErrUnknownToken)

	err = l.Transfer(ctx, testToken, owner, account1, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrUnknownToken)

	token, err := l.Issue(ctx, testToken, owner, decimal.NewFromInt(10000))
	require.NoError(t, err)
	require.Equal(t, owner, token.Issuer)

	_, err = l.Issue(ctx, testToken, account1, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrTokenExists)

	_, err = l.Issue(ctx, testAddress(0x71), owner, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidTransfer)

	require.NoError(t, l.Transfer(ctx, testToken, owner, account1, decimal.NewFromInt(300)))
	time.Sleep(time.Millisecond)
	require.NoError(t, l.Transfer(ctx, testToken, account1, account2, decimal.NewFromInt(100)))

	err = l.Transfer(ctx, testToken, account2, account1, decimal.NewFromInt(101))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = l.Transfer(ctx, testToken, outsider, account1, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = l.Transfer(ctx, testToken, owner, ZeroAddress, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ErrInvalidTransfer)

	for holder, want := range map[Address]int64{
		owner:    9700,
		account1: 200,
		account2: 100,
		outsider: 0,
	} {
		amount, err := l.BalanceOf(ctx, testToken, holder)
		require.NoError(t, err)
		require.True(t, amount.Equal(decimal.NewFromInt(want)), "%s has %s", holder, amount)
	}

	snapshots, err := l.ListSnapshots(ctx, testToken, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Equal(t, account1, snapshots[0].From)
	require.Equal(t, owner, snapshots[1].From)
	require.True(t, snapshots[1].Amount.Equal(decimal.NewFromInt(300)))

	older, err := l.ListSnapshots(ctx, testToken, snapshots[0].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	require.Equal(t, snapshots[1].ID, older[0].ID)

	snapshots, err = l.ListSnapshots(ctx, testAddress(0x71), time.Time{}, 10)
	require.NoError(t, err)
	require.Empty(t, snapshots)
}
