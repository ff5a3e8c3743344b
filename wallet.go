package multisig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
	"github.com/zyedidia/generic/mapset"
)

const minQuorum = 2

// NewWallet validates a signer group. The creator always becomes a signer,
// duplicated signers are counted once.
func NewWallet(address, creator Address, quorum int, signers []Address) (*Wallet, error) {
	if creator.IsZero() {
		return nil, fmt.Errorf("%w: zero creator", ErrInvalidConfiguration)
	}

	set := mapset.New[Address]()
	for _, signer := range signers {
		if signer.IsZero() {
			return nil, fmt.Errorf("%w: zero address signer", ErrInvalidConfiguration)
		}

		set.Put(signer)
	}

	set.Put(creator)

	if quorum < minQuorum {
		return nil, fmt.Errorf("%w: quorum %d is less than %d", ErrInvalidConfiguration, quorum, minQuorum)
	}

	if quorum > set.Size() {
		return nil, fmt.Errorf("%w: quorum %d exceeds %d signers", ErrInvalidConfiguration, quorum, set.Size())
	}

	list := make([]Address, 0, set.Size())
	set.Each(func(signer Address) {
		list = append(list, signer)
	})
	slices.SortFunc(list, compareAddress)

	return &Wallet{
		Address:   address,
		Creator:   creator,
		Threshold: quorum,
		Signers:   list,
		CreatedAt: time.Now(),
	}, nil
}

// Multisig is a live wallet instance. Mutations of its request ledger are
// serialized by mu; distinct instances never contend.
type Multisig struct {
	*Wallet

	db     *badger.DB
	ledger TokenLedger
	mu     sync.Mutex
}

func newMultisig(w *Wallet, db *badger.DB, ledger TokenLedger) *Multisig {
	return &Multisig{
		Wallet: w,
		db:     db,
		ledger: ledger,
	}
}

// SubmitTransfer records a new request approved by sender. No funds move and
// sender need not be a signer.
func (m *Multisig) SubmitTransfer(ctx context.Context, amount decimal.Decimal, recipient, token, sender Address) (uint64, error) {
	if !amount.IsPositive() || !amount.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s must be a positive integer", ErrInvalidTransfer, amount)
	}

	if recipient.IsZero() {
		return 0, fmt.Errorf("%w: zero recipient", ErrInvalidTransfer)
	}

	if token.IsZero() {
		return 0, fmt.Errorf("%w: zero token", ErrInvalidTransfer)
	}

	if sender.IsZero() {
		return 0, fmt.Errorf("%w: zero sender", ErrInvalidTransfer)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.db.NewTransaction(true)
	defer txn.Discard()

	var seq uint64
	if err := readProperty(txn, requestSequenceProperty(m.Address), &seq); err != nil {
		return 0, err
	}

	req := &Request{
		ID:           seq + 1,
		Amount:       amount,
		Recipient:    recipient,
		Sender:       sender,
		Token:        token,
		NoOfApproval: 1,
		Approvals:    []Address{sender},
		CreatedAt:    time.Now(),
	}

	if err := saveRequest(txn, m.Address, req); err != nil {
		return 0, err
	}

	if err := saveProperty(txn, requestSequenceProperty(m.Address), req.ID); err != nil {
		return 0, err
	}

	if err := txn.Commit(); err != nil {
		return 0, err
	}

	slog.Info("submit transfer",
		"wallet", m.Address,
		"id", req.ID,
		"sender", sender,
		"recipient", recipient,
		"amount", amount,
	)

	return req.ID, nil
}

// Approve adds approver's approval to request id. The approval that brings
// the count to quorum executes the transfer; if the transfer fails nothing
// is recorded.
func (m *Multisig) Approve(ctx context.Context, id uint64, approver Address) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; ; attempt++ {
		req, external, err := m.approve(ctx, id, approver)
		if errors.Is(err, badger.ErrConflict) {
			// another wallet paid the same holder; re-read and try again
			// unless an external ledger already moved the funds
			if !external && attempt < maxConflictRetries {
				continue
			}

			return nil, fmt.Errorf("%w: %w", ErrTransferExecutionFailed, err)
		}

		if err != nil {
			return nil, err
		}

		slog.Info("approve transfer",
			"wallet", m.Address,
			"id", id,
			"approver", approver,
			"approvals", req.NoOfApproval,
			"completed", req.IsCompleted,
		)

		return req, nil
	}
}

// approve runs one attempt of Approve in its own transaction. external
// reports whether the transfer went through a ledger outside of it.
func (m *Multisig) approve(ctx context.Context, id uint64, approver Address) (req *Request, external bool, err error) {
	txn := m.db.NewTransaction(true)
	defer txn.Discard()

	req, err = findRequest(txn, m.Address, id)
	if err != nil {
		return nil, false, err
	}

	if req.IsCompleted {
		return nil, false, fmt.Errorf("request %d: %w", id, ErrAlreadyCompleted)
	}

	if !m.IsValidSigner(approver) {
		return nil, false, fmt.Errorf("%s: %w", approver, ErrNotASigner)
	}

	if req.HasApproved(approver) {
		return nil, false, fmt.Errorf("%s on request %d: %w", approver, id, ErrAlreadyApproved)
	}

	req.Approvals = append(req.Approvals, approver)
	req.NoOfApproval++

	if req.NoOfApproval >= m.Quorum() {
		// an external ledger commits on its own: if the commit below fails
		// after it succeeded, the funds have moved but the request stays open.
		external, err = m.execute(ctx, txn, req)
		if err != nil {
			slog.Warn("execute transfer failed",
				"wallet", m.Address,
				"id", id,
				slog.Any("err", err),
			)
			return nil, false, fmt.Errorf("%w: %w", ErrTransferExecutionFailed, err)
		}

		req.IsCompleted = true
		req.CompletedAt = time.Now()
	}

	if err := saveRequest(txn, m.Address, req); err != nil {
		return nil, external, err
	}

	if err := txn.Commit(); err != nil {
		if external {
			slog.Error("request not completed after external transfer",
				"wallet", m.Address,
				"id", id,
				slog.Any("err", err),
			)
		}

		return nil, external, err
	}

	return req, external, nil
}

// execute moves the request's funds out of the wallet. The built-in ledger
// joins txn so the movement commits together with the completion flag; any
// other ledger commits on its own and external is true.
func (m *Multisig) execute(ctx context.Context, txn *badger.Txn, req *Request) (external bool, err error) {
	if l, ok := m.ledger.(*Ledger); ok && l.db == m.db {
		return false, l.transferTxn(txn, req.Token, m.Address, req.Recipient, req.Amount)
	}

	return true, m.ledger.Transfer(ctx, req.Token, m.Address, req.Recipient, req.Amount)
}

func (m *Multisig) GetRequest(ctx context.Context, id uint64) (*Request, error) {
	var req *Request
	err := m.db.View(func(txn *badger.Txn) (err error) {
		req, err = findRequest(txn, m.Address, id)
		return
	})

	return req, err
}

func (m *Multisig) HasApproved(ctx context.Context, addr Address, id uint64) (bool, error) {
	req, err := m.GetRequest(ctx, id)
	if err != nil {
		return false, err
	}

	return req.HasApproved(addr), nil
}

// ListRequests returns up to limit requests with id greater than offset.
func (m *Multisig) ListRequests(ctx context.Context, offset uint64, limit int) ([]*Request, error) {
	var requests []*Request
	err := m.db.View(func(txn *badger.Txn) (err error) {
		requests, err = listRequests(txn, m.Address, offset, limit)
		return
	})

	return requests, err
}
