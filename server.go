package multisig

import (
	"github.com/dgraph-io/badger/v4"
)

type Config struct {
	// Registry is the address new wallet addresses are derived from.
	Registry Address
	Issuer   string
	Secret   []byte
}

type Server struct {
	db  *badger.DB
	cfg Config

	ledger   *Ledger
	registry *Registry
}

func NewServer(db *badger.DB, cfg Config) *Server {
	ledger := NewLedger(db)

	return &Server{
		db:       db,
		cfg:      cfg,
		ledger:   ledger,
		registry: NewRegistry(db, ledger, cfg.Registry),
	}
}
