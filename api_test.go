package multisig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
	cfg    Config
}

func newAPIClient(t *testing.T) *apiClient {
	cfg := Config{
		Registry: testRegistry,
		Issuer:   "multisig-test",
		Secret:   []byte("secret"),
	}

	server := httptest.NewServer(NewServer(openDB(t), cfg).Handler())
	t.Cleanup(server.Close)

	return &apiClient{t: t, server: server, cfg: cfg}
}

func (c *apiClient) token(addr Address) string {
	token, err := NewToken(c.cfg, addr, time.Hour)
	require.NoError(c.t, err)
	return token
}

// do sends body as json on behalf of as and decodes the response into out.
// A zero as sends an anonymous request. It returns the twirp error code, or
// "" on success.
func (c *apiClient) do(method, path string, as Address, body, out interface{}) string {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)

	if !as.IsZero() {
		req.Header.Set("Authorization", "Bearer "+c.token(as))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Code string `json:"code"`
		}
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&e))
		return e.Code
	}

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}

	return ""
}

func TestAPI(t *testing.T) {
	c := newAPIClient(t)

	var wallets []Address
	require.Empty(t, c.do("GET", "/wallets", ZeroAddress, nil, &wallets))
	require.Empty(t, wallets)

	createBody := map[string]interface{}{
		"quorum":  3,
		"signers": []Address{account1, account2, account3, account4},
	}

	require.Equal(t, "unauthenticated", c.do("POST", "/wallets", ZeroAddress, createBody, nil))

	var wallet walletView
	require.Empty(t, c.do("POST", "/wallets", owner, createBody, &wallet))
	require.Equal(t, 3, wallet.Quorum)
	require.Equal(t, 5, wallet.SignerCount)
	require.Equal(t, owner, wallet.Creator)

	require.Equal(t, "invalid_argument", c.do("POST", "/wallets", owner, map[string]interface{}{
		"quorum":  6,
		"signers": []Address{account1, account2, account3, account4},
	}, nil))

	require.Empty(t, c.do("GET", "/wallets", ZeroAddress, nil, &wallets))
	require.Equal(t, []Address{wallet.Address}, wallets)

	walletPath := "/wallets/" + wallet.Address.String()

	var signer struct {
		Valid bool `json:"valid"`
	}
	require.Empty(t, c.do("GET", walletPath+"/signers/"+account1.String(), ZeroAddress, nil, &signer))
	require.True(t, signer.Valid)
	require.Empty(t, c.do("GET", walletPath+"/signers/"+outsider.String(), ZeroAddress, nil, &signer))
	require.False(t, signer.Valid)

	// fund the wallet the way the token's deployer would
	tokenPath := "/tokens/" + testToken.String()
	require.Empty(t, c.do("POST", tokenPath, owner, map[string]string{"supply": "10000"}, nil))
	require.Equal(t, "already_exists", c.do("POST", tokenPath, owner, map[string]string{"supply": "1"}, nil))
	require.Empty(t, c.do("POST", tokenPath+"/transfers", owner, map[string]interface{}{
		"recipient": wallet.Address,
		"amount":    "1000",
	}, nil))

	var submitted struct {
		ID uint64 `json:"id"`
	}
	transfer := map[string]interface{}{
		"amount":    "100",
		"recipient": account1,
		"token":     testToken,
	}
	require.Empty(t, c.do("POST", walletPath+"/transfers", owner, transfer, &submitted))
	require.EqualValues(t, 1, submitted.ID)

	requestPath := fmt.Sprintf("%s/transfers/%d", walletPath, submitted.ID)

	var req Request
	require.Empty(t, c.do("GET", requestPath, ZeroAddress, nil, &req))
	require.Equal(t, 1, req.NoOfApproval)
	require.False(t, req.IsCompleted)
	require.Equal(t, owner, req.Sender)

	var approved struct {
		Approved bool `json:"approved"`
	}
	require.Empty(t, c.do("GET", requestPath+"/approvals/"+owner.String(), ZeroAddress, nil, &approved))
	require.True(t, approved.Approved)

	require.Equal(t, "permission_denied", c.do("POST", requestPath+"/approve", outsider, nil, nil))
	require.Equal(t, "already_exists", c.do("POST", requestPath+"/approve", owner, nil, nil))
	require.Equal(t, "not_found", c.do("POST", walletPath+"/transfers/9/approve", account1, nil, nil))
	require.Equal(t, "invalid_argument", c.do("POST", walletPath+"/transfers/x/approve", account1, nil, nil))

	require.Empty(t, c.do("POST", requestPath+"/approve", account1, nil, &req))
	require.Equal(t, 2, req.NoOfApproval)
	require.Empty(t, c.do("POST", requestPath+"/approve", account2, nil, &req))
	require.Equal(t, 3, req.NoOfApproval)
	require.True(t, req.IsCompleted)

	require.Equal(t, "failed_precondition", c.do("POST", requestPath+"/approve", account3, nil, nil))

	var balance Balance
	require.Empty(t, c.do("GET", tokenPath+"/balances/"+wallet.Address.String(), ZeroAddress, nil, &balance))
	require.True(t, balance.Amount.Equal(decimal.NewFromInt(900)))
	require.Empty(t, c.do("GET", tokenPath+"/balances/"+account1.String(), ZeroAddress, nil, &balance))
	require.True(t, balance.Amount.Equal(decimal.NewFromInt(100)))

	var snapshots []*Snapshot
	require.Empty(t, c.do("GET", tokenPath+"/snapshots", ZeroAddress, nil, &snapshots))
	require.Len(t, snapshots, 2)
	require.Equal(t, wallet.Address, snapshots[0].From)

	t.Run("insufficient funds", func(t *testing.T) {
		transfer["amount"] = "5000"
		require.Empty(t, c.do("POST", walletPath+"/transfers", account4, transfer, &submitted))
		require.EqualValues(t, 2, submitted.ID)

		path := fmt.Sprintf("%s/transfers/%d", walletPath, submitted.ID)
		require.Empty(t, c.do("POST", path+"/approve", account1, nil, nil))
		require.Equal(t, "aborted", c.do("POST", path+"/approve", account2, nil, nil))

		require.Empty(t, c.do("GET", path, ZeroAddress, nil, &req))
		require.Equal(t, 2, req.NoOfApproval)
		require.False(t, req.IsCompleted)
	})

	var requests []*Request
	require.Empty(t, c.do("GET", walletPath+"/transfers", ZeroAddress, nil, &requests))
	require.Len(t, requests, 2)

	require.Equal(t, "not_found", c.do("GET", "/wallets/"+outsider.String(), ZeroAddress, nil, nil))
	require.Equal(t, "invalid_argument", c.do("GET", "/wallets/nope", ZeroAddress, nil, nil))
}

func TestAPI_Auth(t *testing.T) {
	c := newAPIClient(t)

	call := func(token string) int {
		req, err := http.NewRequest("GET", c.server.URL+"/wallets", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusOK, call(c.token(owner)))
	require.Equal(t, http.StatusUnauthorized, call("garbage"))

	expired, err := NewToken(c.cfg, owner, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(expired))

	other := c.cfg
	other.Issuer = "someone-else"
	foreign, err := NewToken(other, owner, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(foreign))

	other = c.cfg
	other.Secret = []byte("another secret")
	forged, err := NewToken(other, owner, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, call(forged))
}
