// Package runtimetest provides an in-memory runtime for program tests.
package runtimetest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage/memory"
)

// Env is a runtime over a memory store with a funded payer.
type Env struct {
	T       testing.TB
	Runtime *runtime.Runtime
	Store   *memory.AccountStore
	Events  *memory.EventStore
	Payer   *solana.Keypair
}

// DefaultPayerLamports is the genesis balance of Env.Payer.
const DefaultPayerLamports = 100 * solana.LamportsPerSOL

// New creates an Env with programs registered and the payer funded at genesis.
func New(t testing.TB, programs ...runtime.Program) *Env {
	t.Helper()
	ctx := context.Background()

	store := memory.NewAccountStore()
	events := memory.NewEventStore()
	rt, err := runtime.New(ctx, runtime.DefaultConfig(), store, nil,
		runtime.WithEventStore(events),
		runtime.WithMetrics(observability.NewMetrics("test", prometheus.NewRegistry())),
		runtime.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	require.NoError(t, err)
	rt.Register(programs...)

	payer, err := solana.NewKeypair()
	require.NoError(t, err)

	require.NoError(t, rt.Genesis(ctx, map[solana.PublicKey]*domain.Account{
		payer.PublicKey: {Lamports: DefaultPayerLamports, Owner: solana.SystemProgramID},
	}))

	return &Env{T: t, Runtime: rt, Store: store, Events: events, Payer: payer}
}

// NewKeypair generates a keypair or fails the test.
func (e *Env) NewKeypair() *solana.Keypair {
	e.T.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(e.T, err)
	return kp
}

// Send signs ixs with the payer and signers and processes them.
func (e *Env) Send(ixs []solana.Instruction, signers ...*solana.Keypair) *runtime.Result {
	e.T.Helper()
	return e.SendFrom(e.Payer, ixs, signers...)
}

// SendFrom is Send with an explicit fee payer.
func (e *Env) SendFrom(payer *solana.Keypair, ixs []solana.Instruction, signers ...*solana.Keypair) *runtime.Result {
	e.T.Helper()

	tx := solana.NewTransaction(payer.PublicKey, ixs...)
	hash, _ := e.Runtime.LatestBlockhash()
	tx.SetBlockhash(hash)
	require.NoError(e.T, tx.Sign(append([]*solana.Keypair{payer}, signers...)...))

	res, err := e.Runtime.Process(context.Background(), &tx)
	require.NoError(e.T, err)
	return res
}

// MustSend is Send that fails the test unless the transaction commits.
func (e *Env) MustSend(ixs []solana.Instruction, signers ...*solana.Keypair) *runtime.Result {
	e.T.Helper()
	res := e.Send(ixs, signers...)
	require.Nil(e.T, res.Err, "transaction failed: %v\nlogs: %v", res.Err, res.Logs)
	return res
}

// Account loads committed state, nil if absent.
func (e *Env) Account(addr solana.PublicKey) *domain.Account {
	e.T.Helper()
	acct, err := e.Runtime.Account(context.Background(), addr)
	require.NoError(e.T, err)
	return acct
}

// Balance returns the lamports of addr, 0 if absent.
func (e *Env) Balance(addr solana.PublicKey) uint64 {
	if acct := e.Account(addr); acct != nil {
		return acct.Lamports
	}
	return 0
}

// RequireCustomError asserts res failed at instruction index with code.
func RequireCustomError(t testing.TB, res *runtime.Result, index int, code uint32) {
	t.Helper()
	require.NotNil(t, res.Err, "expected custom error %d", code)
	require.NotNil(t, res.Err.Instruction, "expected instruction error, got %v", res.Err)
	got, ok := res.Err.CustomCode()
	require.True(t, ok, "expected custom error %d, got %v", code, res.Err)
	require.Equal(t, code, got, "logs: %v", res.Logs)
	require.Equal(t, index, res.Err.Instruction.Index)
}

// RequireInstructionError asserts res failed at index with a builtin kind.
func RequireInstructionError(t testing.TB, res *runtime.Result, index int, kind string) {
	t.Helper()
	require.NotNil(t, res.Err, "expected %s", kind)
	require.NotNil(t, res.Err.Instruction, "expected instruction error, got %v", res.Err)
	require.Equal(t, kind, res.Err.Instruction.Kind, "logs: %v", res.Logs)
	require.Equal(t, index, res.Err.Instruction.Index)
}
