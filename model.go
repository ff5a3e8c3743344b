package multisig

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	Address   Address   `json:"address"`
	Creator   Address   `json:"creator"`
	Threshold int       `json:"threshold"`
	Signers   []Address `json:"signers"`
	CreatedAt time.Time `json:"created_at"`
}

// IsValidSigner reports whether addr may approve requests of this wallet.
func (w *Wallet) IsValidSigner(addr Address) bool {
	_, ok := slices.BinarySearchFunc(w.Signers, addr, compareAddress)
	return ok
}

func (w *Wallet) Quorum() int {
	return w.Threshold
}

func (w *Wallet) SignerCount() int {
	return len(w.Signers)
}

type Request struct {
	ID           uint64          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Recipient    Address         `json:"recipient"`
	Sender       Address         `json:"sender"`
	Token        Address         `json:"token_address"`
	NoOfApproval int             `json:"no_of_approval"`
	IsCompleted  bool            `json:"is_completed"`
	Approvals    []Address       `json:"approvals"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  time.Time       `json:"completed_at,omitempty"`
}

func (r *Request) HasApproved(addr Address) bool {
	return slices.Contains(r.Approvals, addr)
}

type Token struct {
	Address   Address         `json:"address"`
	Issuer    Address         `json:"issuer"`
	Supply    decimal.Decimal `json:"supply"`
	CreatedAt time.Time       `json:"created_at"`
}

type Balance struct {
	Token  Address         `json:"token"`
	Holder Address         `json:"holder"`
	Amount decimal.Decimal `json:"amount"`
}

type Snapshot struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Token     Address         `json:"token"`
	From      Address         `json:"from"`
	To        Address         `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
}
