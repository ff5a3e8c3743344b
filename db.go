package multisig

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	g "github.com/pandodao/generic"
)

var (
	propertyPrefix = []byte("p:")
	walletPrefix   = []byte("w:")
	registryPrefix = []byte("f:")
	requestPrefix  = []byte("r:")
	tokenPrefix    = []byte("t:")
	balancePrefix  = []byte("b:")
	snapshotPrefix = []byte("s:")
)

const (
	walletCountProperty = "wallet_count"
)

func requestSequenceProperty(wallet Address) string {
	return "request_seq:" + wallet.String()
}

const maxConflictRetries = 16

// updateWithRetry runs fn in a fresh read-write transaction, again as long
// as the commit fails with badger.ErrConflict. fn must be safe to re-run.
func updateWithRetry(db *badger.DB, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		err := db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
	}
}

func saveProperty(txn *badger.Txn, key string, v any) error {
	pk := addressPrefix(propertyPrefix)
	pk = append(pk, key...)
	return txn.Set(pk, g.Must(json.Marshal(v)))
}

// readProperty leaves v untouched if the property was never saved.
func readProperty(txn *badger.Txn, key string, v any) error {
	pk := addressPrefix(propertyPrefix)
	pk = append(pk, key...)

	item, err := txn.Get(pk)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}

		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func getValue(txn *badger.Txn, key []byte, v any) (bool, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}

		return false, err
	}

	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	}); err != nil {
		return false, err
	}

	return true, nil
}

func saveWallet(txn *badger.Txn, w *Wallet) error {
	pk := addressPrefix(walletPrefix, w.Address)
	return txn.Set(pk, g.Must(json.Marshal(w)))
}

func findWallet(txn *badger.Txn, addr Address) (*Wallet, error) {
	var w Wallet
	ok, err := getValue(txn, addressPrefix(walletPrefix, addr), &w)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", addr, ErrUnknownWallet)
	}

	return &w, nil
}

// appendWallet records addr as the index-th entry of the registry.
func appendWallet(txn *badger.Txn, index uint64, addr Address) error {
	pk := buildIndexKey(registryPrefix, int64(index))
	return txn.Set(pk, addr[:])
}

func listWallets(txn *badger.Txn) ([]Address, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	it := txn.NewIterator(opts)
	defer it.Close()

	var wallets []Address
	for it.Seek(registryPrefix); it.ValidForPrefix(registryPrefix); it.Next() {
		var addr Address
		if err := it.Item().Value(func(val []byte) error {
			if len(val) != AddressLength {
				return fmt.Errorf("malformed registry entry %x", it.Item().Key())
			}

			copy(addr[:], val)
			return nil
		}); err != nil {
			return nil, err
		}

		wallets = append(wallets, addr)
	}

	return wallets, nil
}

func saveRequest(txn *badger.Txn, wallet Address, req *Request) error {
	pk := buildIndexKey(addressPrefix(requestPrefix, wallet), int64(req.ID))
	return txn.Set(pk, g.Must(json.Marshal(req)))
}

func findRequest(txn *badger.Txn, wallet Address, id uint64) (*Request, error) {
	var req Request
	ok, err := getValue(txn, buildIndexKey(addressPrefix(requestPrefix, wallet), int64(id)), &req)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("request %d: %w", id, ErrUnknownRequest)
	}

	return &req, nil
}

// listRequests returns requests with id greater than offset in id order.
func listRequests(txn *badger.Txn, wallet Address, offset uint64, limit int) ([]*Request, error) {
	if offset == math.MaxUint64 {
		return nil, nil
	}

	prefix := addressPrefix(requestPrefix, wallet)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = limit
	it := txn.NewIterator(opts)
	defer it.Close()

	var requests []*Request
	for it.Seek(buildIndexKey(prefix, int64(offset+1))); it.ValidForPrefix(prefix) && len(requests) < limit; it.Next() {
		var req Request
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &req)
		}); err != nil {
			return nil, err
		}

		requests = append(requests, &req)
	}

	return requests, nil
}

func saveToken(txn *badger.Txn, token *Token) error {
	pk := addressPrefix(tokenPrefix, token.Address)
	return txn.Set(pk, g.Must(json.Marshal(token)))
}

func findToken(txn *badger.Txn, addr Address) (*Token, error) {
	var token Token
	ok, err := getValue(txn, addressPrefix(tokenPrefix, addr), &token)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("token %s: %w", addr, ErrUnknownToken)
	}

	return &token, nil
}

func saveBalance(txn *badger.Txn, b *Balance) error {
	pk := addressPrefix(balancePrefix, b.Token, b.Holder)
	return txn.Set(pk, g.Must(json.Marshal(b)))
}

func findBalance(txn *badger.Txn, token, holder Address) (*Balance, error) {
	b := Balance{Token: token, Holder: holder}
	if _, err := getValue(txn, addressPrefix(balancePrefix, token, holder), &b); err != nil {
		return nil, err
	}

	return &b, nil
}

func saveSnapshot(txn *badger.Txn, s *Snapshot) error {
	pk := buildIndexKey(
		addressPrefix(snapshotPrefix, s.Token),
		s.CreatedAt.UnixNano(),
		s.ID,
	)

	return txn.Set(pk, g.Must(json.Marshal(s)))
}

// listSnapshots returns snapshots created before since, newest first.
func listSnapshots(txn *badger.Txn, token Address, since time.Time, limit int) ([]*Snapshot, error) {
	prefix := addressPrefix(snapshotPrefix, token)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = limit
	opts.Reverse = true
	it := txn.NewIterator(opts)
	defer it.Close()

	if since.IsZero() {
		it.Seek(append(addressPrefix(snapshotPrefix, token), 0xff))
	} else {
		it.Seek(buildIndexKey(prefix, since.UnixNano()))
	}

	var snapshots []*Snapshot
	for ; it.ValidForPrefix(prefix) && len(snapshots) < limit; it.Next() {
		var s Snapshot
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		}); err != nil {
			return nil, err
		}

		snapshots = append(snapshots, &s)
	}

	return snapshots, nil
}
