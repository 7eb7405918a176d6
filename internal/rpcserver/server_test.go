package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/validator"
)

type testCluster struct {
	srv    *httptest.Server
	v      *validator.Validator
	client *solana.HTTPClient
}

func newTestCluster(t *testing.T) *testCluster {
	t.Helper()
	log := zaptest.NewLogger(t)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	v, err := validator.NewInMemory(context.Background(), log, validator.WithMetrics(metrics))
	require.NoError(t, err)

	s := New(v, log, WithMetrics(metrics))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.closeConns()
		srv.Close()
		v.Close()
	})

	return &testCluster{
		srv:    srv,
		v:      v,
		client: solana.NewHTTPClient(srv.URL, solana.WithMaxRetries(0)),
	}
}

func (c *testCluster) funded(t *testing.T, lamports uint64) *solana.Keypair {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	_, err = c.client.RequestAirdrop(context.Background(), kp.PublicKey, lamports)
	require.NoError(t, err)
	return kp
}

func (c *testCluster) signed(t *testing.T, payer *solana.Keypair, ixs []solana.Instruction, signers ...*solana.Keypair) solana.Transaction {
	t.Helper()
	hash, err := c.client.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	tx := solana.NewTransaction(payer.PublicKey, ixs...)
	tx.SetBlockhash(hash)
	require.NoError(t, tx.Sign(append([]*solana.Keypair{payer}, signers...)...))
	return tx
}

func TestAirdropAndBalance(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()

	kp := c.funded(t, 2*solana.LamportsPerSOL)

	balance, err := c.client.GetBalance(ctx, kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, 2*solana.LamportsPerSOL, balance)

	info, err := c.client.GetAccountInfo(ctx, kp.PublicKey)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, solana.SystemProgramID, info.Owner)

	missing, err := c.client.GetAccountInfo(ctx, solana.PublicKey{9, 9, 9})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSendTransaction_Lifecycle(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()

	owner := c.funded(t, solana.LamportsPerSOL)
	minter, err := solana.NewKeypair()
	require.NoError(t, err)

	tx := c.signed(t, owner, []solana.Instruction{nft.InitializeNft(owner.PublicKey, minter.PublicKey)}, minter)
	sig, err := c.client.SendTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature(), sig)

	statuses, err := c.client.GetSignatureStatuses(ctx, sig, solana.Signature{1})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.NotNil(t, statuses[0])
	assert.Nil(t, statuses[0].Err)
	assert.Equal(t, solana.CommitmentFinalized, statuses[0].ConfirmationStatus)
	assert.Nil(t, statuses[1])

	got, err := c.client.GetTransaction(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(2*5000), got.Fee)
	assert.Contains(t, got.LogMessages, "Program "+nft.ProgramID.String()+" invoke [1]")
	assert.Contains(t, got.AccountKeys, minter.PublicKey)

	mint, err := c.client.GetAccountInfo(ctx, minter.PublicKey)
	require.NoError(t, err)
	require.NotNil(t, mint)
	assert.Equal(t, solana.TokenProgramID, mint.Owner)

	sigs, err := c.client.GetSignaturesForAddress(ctx, minter.PublicKey, nil)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, sig, sigs[0].Signature)
	assert.Equal(t, got.Slot, sigs[0].Slot)
}

func TestSendTransaction_PreflightFailure(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()

	owner := c.funded(t, solana.LamportsPerSOL)
	minter, err := solana.NewKeypair()
	require.NoError(t, err)

	ix := nft.InitializeNft(owner.PublicKey, minter.PublicKey)
	_, err = c.client.SendTransaction(ctx, c.signed(t, owner, []solana.Instruction{ix}, minter))
	require.NoError(t, err)
	before, err := c.client.GetBalance(ctx, owner.PublicKey)
	require.NoError(t, err)

	_, err = c.client.SendTransaction(ctx, c.signed(t, owner, []solana.Instruction{ix}, minter))
	var txErr *solana.TransactionError
	require.ErrorAs(t, err, &txErr)
	code, ok := txErr.CustomCode()
	require.True(t, ok)
	assert.Equal(t, nft.ErrAlreadyInitialized.Code, code)
	assert.Equal(t, 0, txErr.Instruction.Index)

	// Rejected transactions are neither recorded nor charged.
	after, err := c.client.GetBalance(ctx, owner.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	sigs, err := c.client.GetSignaturesForAddress(ctx, minter.PublicKey, nil)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
}

func TestSimulateTransaction(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()

	from := c.funded(t, solana.LamportsPerSOL)
	to := solana.PublicKey{5}

	tx := c.signed(t, from, []solana.Instruction{system.Transfer(from.PublicKey, to, 1000)})
	txErr, logs, err := c.client.SimulateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Nil(t, txErr)
	assert.NotEmpty(t, logs)

	balance, err := c.client.GetBalance(ctx, to)
	require.NoError(t, err)
	assert.Zero(t, balance)

	tx = c.signed(t, from, []solana.Instruction{system.Transfer(from.PublicKey, to, 2*solana.LamportsPerSOL)})
	txErr, _, err = c.client.SimulateTransaction(ctx, tx)
	require.NoError(t, err)
	require.NotNil(t, txErr)
	require.NotNil(t, txErr.Instruction)
}

func TestReads(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()

	require.NoError(t, c.client.GetHealth(ctx))

	rent, err := c.client.GetMinimumBalanceForRentExemption(ctx, 165)
	require.NoError(t, err)
	assert.Equal(t, runtime.RentExemptMinimum(165), rent)

	slot, err := c.client.GetSlot(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.v.Runtime.Slot(), slot)

	got, err := c.client.GetTransaction(ctx, solana.Signature{7})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func post(t *testing.T, url, body string) map[string]json.RawMessage {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestProtocolErrors(t *testing.T) {
	c := newTestCluster(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, solana.RPCCodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"getSlot"}`, solana.RPCCodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"getBlock"}`, solana.RPCCodeMethodNotFound},
		{"bad address", `{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["nope"]}`, solana.RPCCodeInvalidParams},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"requestAirdrop","params":[]}`, solana.RPCCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := post(t, c.srv.URL, tt.body)
			var rpcErr solana.RPCError
			require.NoError(t, json.Unmarshal(out["error"], &rpcErr))
			assert.Equal(t, tt.code, rpcErr.Code)
		})
	}
}

func TestBatch(t *testing.T) {
	c := newTestCluster(t)

	body := `[{"jsonrpc":"2.0","id":1,"method":"getSlot"},{"jsonrpc":"2.0","id":2,"method":"getHealth"}]`
	resp, err := http.Post(c.srv.URL, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []solana.RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.JSONEq(t, "2", string(out[1].ID))
	assert.JSONEq(t, `"ok"`, string(out[1].Result))
}

func TestHealthAndStatus(t *testing.T) {
	c := newTestCluster(t)

	resp, err := http.Get(c.srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(c.srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, c.v.Faucet.PublicKey.String(), status.Faucet)

	resp, err = http.Get(c.srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
