package multisig

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/yiplee/go-cache"
	"golang.org/x/sync/singleflight"
)

// Registry creates wallets and keeps the ordered list of their addresses.
type Registry struct {
	db      *badger.DB
	ledger  TokenLedger
	address Address

	mu      sync.Mutex
	wallets *cache.Cache[Address, *Multisig]
	sf      singleflight.Group
}

func NewRegistry(db *badger.DB, ledger TokenLedger, address Address) *Registry {
	return &Registry{
		db:      db,
		ledger:  ledger,
		address: address,
		wallets: cache.New[Address, *Multisig](),
	}
}

func (r *Registry) Address() Address {
	return r.address
}

// CreateWallet builds a wallet for creator and the given signers and appends
// it to the registry. Configuration errors from NewWallet are returned as is.
func (r *Registry) CreateWallet(ctx context.Context, creator Address, quorum int, signers []Address) (*Multisig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn := r.db.NewTransaction(true)
	defer txn.Discard()

	var count uint64
	if err := readProperty(txn, walletCountProperty, &count); err != nil {
		return nil, err
	}

	w, err := NewWallet(deriveAddress(r.address, count), creator, quorum, signers)
	if err != nil {
		return nil, err
	}

	if err := saveWallet(txn, w); err != nil {
		return nil, err
	}

	if err := appendWallet(txn, count, w.Address); err != nil {
		return nil, err
	}

	if err := saveProperty(txn, walletCountProperty, count+1); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}

	slog.Info("create wallet",
		"wallet", w.Address,
		"index", count,
		"creator", creator,
		"quorum", w.Threshold,
		"signers", w.SignerCount(),
	)

	m := newMultisig(w, r.db, r.ledger)
	r.wallets.Set(w.Address, m)
	return m, nil
}

// ListWallets returns the addresses of all created wallets in creation order.
func (r *Registry) ListWallets(ctx context.Context) ([]Address, error) {
	var wallets []Address
	err := r.db.View(func(txn *badger.Txn) (err error) {
		wallets, err = listWallets(txn)
		return
	})

	return wallets, err
}

// Wallet returns the live instance of the wallet at addr. Every call for the
// same address yields the same instance.
func (r *Registry) Wallet(ctx context.Context, addr Address) (*Multisig, error) {
	if m, ok := r.wallets.Get(addr); ok {
		return m, nil
	}

	v, err, _ := r.sf.Do(addr.String(), func() (interface{}, error) {
		// CreateWallet caches new instances before releasing mu.
		r.mu.Lock()
		defer r.mu.Unlock()

		if m, ok := r.wallets.Get(addr); ok {
			return m, nil
		}

		var w *Wallet
		if err := r.db.View(func(txn *badger.Txn) (err error) {
			w, err = findWallet(txn, addr)
			return
		}); err != nil {
			return nil, fmt.Errorf("load wallet: %w", err)
		}

		m := newMultisig(w, r.db, r.ledger)
		r.wallets.Set(addr, m)
		return m, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Multisig), nil
}
