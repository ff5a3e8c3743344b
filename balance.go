package multisig

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	token, err := addressParam(r, "token")
	if err != nil {
		renderErr(w, err)
		return
	}

	var body struct {
		Supply decimal.Decimal `json:"supply"`
	}

	if err := bindBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}

	t, err := s.ledger.Issue(r.Context(), token, user.Address, body.Supply)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, t)
}

// transferToken moves the caller's own tokens, e.g. to fund a wallet.
func (s *Server) transferToken(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		renderErr(w, err)
		return
	}

	token, err := addressParam(r, "token")
	if err != nil {
		renderErr(w, err)
		return
	}

	var body struct {
		Recipient Address         `json:"recipient"`
		Amount    decimal.Decimal `json:"amount"`
	}

	if err := bindBody(r, &body); err != nil {
		renderErr(w, err)
		return
	}

	if err := s.ledger.Transfer(r.Context(), token, user.Address, body.Recipient, body.Amount); err != nil {
		renderErr(w, err)
		return
	}

	s.renderBalance(w, r, token, user.Address)
}

func (s *Server) balanceOf(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token")
	if err != nil {
		renderErr(w, err)
		return
	}

	holder, err := addressParam(r, "address")
	if err != nil {
		renderErr(w, err)
		return
	}

	s.renderBalance(w, r, token, holder)
}

func (s *Server) renderBalance(w http.ResponseWriter, r *http.Request, token, holder Address) {
	amount, err := s.ledger.BalanceOf(r.Context(), token, holder)
	if err != nil {
		renderErr(w, err)
		return
	}

	renderJSON(w, &Balance{
		Token:  token,
		Holder: holder,
		Amount: amount,
	})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token")
	if err != nil {
		renderErr(w, err)
		return
	}

	since := cast.ToTime(r.URL.Query().Get("offset"))
	snapshots, err := s.ledger.ListSnapshots(r.Context(), token, since, limitParam(r))
	if err != nil {
		renderErr(w, err)
		return
	}

	if snapshots == nil {
		snapshots = []*Snapshot{}
	}

	renderJSON(w, snapshots)
}
