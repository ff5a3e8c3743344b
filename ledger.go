package multisig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenLedger moves fungible tokens between holders. Transfer must fail
// without side effects when from holds less than amount.
type TokenLedger interface {
	Transfer(ctx context.Context, token, from, to Address, amount decimal.Decimal) error
}

// Ledger is a badger backed fungible token ledger.
type Ledger struct {
	db *badger.DB
}

var _ TokenLedger = (*Ledger)(nil)

func NewLedger(db *badger.DB) *Ledger {
	return &Ledger{db: db}
}

// Issue creates token and credits the whole supply to issuer.
func (l *Ledger) Issue(ctx context.Context, token, issuer Address, supply decimal.Decimal) (*Token, error) {
	if token.IsZero() || issuer.IsZero() {
		return nil, fmt.Errorf("%w: zero address", ErrInvalidTransfer)
	}

	if !supply.IsPositive() || !supply.IsInteger() {
		return nil, fmt.Errorf("%w: supply must be a positive integer", ErrInvalidTransfer)
	}

	txn := l.db.NewTransaction(true)
	defer txn.Discard()

	if _, err := findToken(txn, token); err == nil {
		return nil, fmt.Errorf("token %s: %w", token, ErrTokenExists)
	} else if !errors.Is(err, ErrUnknownToken) {
		return nil, err
	}

	t := &Token{
		Address:   token,
		Issuer:    issuer,
		Supply:    supply,
		CreatedAt: time.Now(),
	}

	if err := saveToken(txn, t); err != nil {
		return nil, err
	}

	if err := saveBalance(txn, &Balance{Token: token, Holder: issuer, Amount: supply}); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}

	slog.Info("issue token", "token", token, "issuer", issuer, "supply", supply)
	return t, nil
}

func (l *Ledger) Transfer(ctx context.Context, token, from, to Address, amount decimal.Decimal) error {
	return updateWithRetry(l.db, func(txn *badger.Txn) error {
		return l.transferTxn(txn, token, from, to, amount)
	})
}

func (l *Ledger) transferTxn(txn *badger.Txn, token, from, to Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return fmt.Errorf("%w: zero recipient", ErrInvalidTransfer)
	}

	if !amount.IsPositive() {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidTransfer)
	}

	if _, err := findToken(txn, token); err != nil {
		return err
	}

	src, err := findBalance(txn, token, from)
	if err != nil {
		return err
	}

	if src.Amount.LessThan(amount) {
		return fmt.Errorf("%s holds %s of %s, want %s: %w", from, src.Amount, token, amount, ErrInsufficientFunds)
	}

	if from != to {
		dst, err := findBalance(txn, token, to)
		if err != nil {
			return err
		}

		src.Amount = src.Amount.Sub(amount)
		dst.Amount = dst.Amount.Add(amount)

		if err := saveBalance(txn, src); err != nil {
			return err
		}

		if err := saveBalance(txn, dst); err != nil {
			return err
		}
	}

	return saveSnapshot(txn, &Snapshot{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		Token:     token,
		From:      from,
		To:        to,
		Amount:    amount,
	})
}

func (l *Ledger) BalanceOf(ctx context.Context, token, holder Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := l.db.View(func(txn *badger.Txn) error {
		if _, err := findToken(txn, token); err != nil {
			return err
		}

		b, err := findBalance(txn, token, holder)
		if err != nil {
			return err
		}

		amount = b.Amount
		return nil
	})

	return amount, err
}

func (l *Ledger) ListSnapshots(ctx context.Context, token Address, since time.Time, limit int) ([]*Snapshot, error) {
	var snapshots []*Snapshot
	err := l.db.View(func(txn *badger.Txn) (err error) {
		snapshots, err = listSnapshots(txn, token, since, limit)
		return
	})

	return snapshots, err
}
