package multisig

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/twitchtv/twirp"
)

func (s *Server) Handler() http.Handler {
	m := chi.NewMux()
	m.Use(middleware.Recoverer)
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Heartbeat("/hc"))
	m.Use(cors.AllowAll().Handler)
	m.Use(handleAuth(s.cfg.Issuer, s.cfg.Secret))

	m.Route("/wallets", func(r chi.Router) {
		r.Get("/", s.listWallets)
		r.Post("/", s.createWallet)

		r.Route("/{wallet}", func(r chi.Router) {
			r.Get("/", s.getWallet)
			r.Get("/signers/{address}", s.isValidSigner)
			r.Get("/transfers", s.listTransfers)
			r.Post("/transfers", s.submitTransfer)
			r.Get("/transfers/{id}", s.getTransfer)
			r.Post("/transfers/{id}/approve", s.approveTransfer)
			r.Get("/transfers/{id}/approvals/{address}", s.hasApproved)
		})
	})

	m.Route("/tokens/{token}", func(r chi.Router) {
		r.Post("/", s.issueToken)
		r.Post("/transfers", s.transferToken)
		r.Get("/balances/{address}", s.balanceOf)
		r.Get("/snapshots", s.listSnapshots)
	})

	return m
}

func renderJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	_ = json.NewEncoder(w).Encode(v)
}

func renderErr(w http.ResponseWriter, err error) {
	te := twirpError(err)
	if te.Code() == twirp.Internal {
		slog.Error("api", slog.Any("err", err))
	}

	_ = twirp.WriteError(w, te)
}

func bindBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return twirp.Malformed.Error(err.Error())
	}

	return nil
}

func requireUser(r *http.Request) (*User, error) {
	user, ok := UserFrom(r.Context())
	if !ok {
		return nil, twirp.Unauthenticated.Error("auth required")
	}

	return user, nil
}

func addressParam(r *http.Request, key string) (Address, error) {
	addr, err := HexToAddress(chi.URLParam(r, key))
	if err != nil {
		return addr, twirp.InvalidArgumentError(key, err.Error())
	}

	return addr, nil
}

func requestIDParam(r *http.Request) (uint64, error) {
	id, err := cast.ToUint64E(chi.URLParam(r, "id"))
	if err != nil || id == 0 {
		return 0, twirp.InvalidArgumentError("id", "invalid request id")
	}

	return id, nil
}

func limitParam(r *http.Request) int {
	limit := cast.ToInt(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	return limit
}

func (s *Server) walletFrom(r *http.Request) (*Multisig, error) {
	addr, err := addressParam(r, "wallet")
	if err != nil {
		return nil, err
	}

	return s.registry.Wallet(r.Context(), addr)
}

type walletView struct {
	*Wallet
	Quorum      int `json:"quorum"`
	SignerCount int `json:"signer_count"`
}

func viewWallet(w *Wallet) walletView {
	return walletView{
		Wallet:      w,
		Quorum:      w.Quorum(),
		SignerCount: w.SignerCount(),
	}
}

func (s *Server) createWallet(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	var body struct {
		Quorum  int       `json:"quorum"`
		Signers []Address `json:"signers"`
	}

	if err := bindBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}

	m, err := s.registry.CreateWallet(r.Context(), user.Address, body.Quorum, body.Signers)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, viewWallet(m.Wallet))
}

func (s *Server) listWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.registry.ListWallets(r.Context())
	if err != nil {
		renderErr(w, err)
		return
	}

	if wallets == nil {
		wallets = []Address{}
	}

	renderJSON(w, wallets)
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, viewWallet(m.Wallet))
}

func (s *Server) isValidSigner(w http.ResponseWriter, r *http.Request) {
	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	addr, err := addressParam(r, "address")
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, map[string]bool{"valid": m.IsValidSigner(addr)})
}

func (s *Server) submitTransfer(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	var body struct {
		Amount    decimal.Decimal `json:"amount"`
		Recipient Address         `json:"recipient"`
		Token     Address         `json:"token"`
	}

	if err := bindBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}

	id, err := m.SubmitTransfer(r.Context(), body.Amount, body.Recipient, body.Token, user.Address)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, map[string]uint64{"id": id})
}

func (s *Server) listTransfers(w http.ResponseWriter, r *http.Request) {
	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	offset := cast.ToUint64(r.URL.Query().Get("offset"))
	requests, err := m.ListRequests(r.Context(), offset, limitParam(r))
	if err != nil {
		renderErr(w, err)
		return
	}

	if requests == nil {
		requests = []*Request{}
	}

	renderJSON(w, requests)
}

func (s *Server) getTransfer(w http.ResponseWriter, r *http.Request) {
	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	id, err := requestIDParam(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	req, err := m.GetRequest(r.Context(), id)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, req)
}

func (s *Server) approveTransfer(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	id, err := requestIDParam(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	req, err := m.Approve(r.Context(), id, user.Address)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, req)
}

func (s *Server) hasApproved(w http.ResponseWriter, r *http.Request) {
	m, err := s.walletFrom(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	id, err := requestIDParam(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	addr, err := addressParam(r, "address")
	if err != nil {
		renderErr(w, err)
		return
	}

	ok, err := m.HasApproved(r.Context(), addr, id)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, map[string]bool{"approved": ok})
}
