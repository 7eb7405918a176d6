package associated_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/programs/associated"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/programs/token"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/runtime/runtimetest"
	"solana-nft-lab/internal/solana"
)

func setup(t *testing.T) (*runtimetest.Env, solana.PublicKey) {
	env := runtimetest.New(t, system.New(), token.New(), associated.New())
	mint := env.NewKeypair()
	env.MustSend([]solana.Instruction{
		system.CreateAccount(env.Payer.PublicKey, mint.PublicKey, runtime.RentExemptMinimum(token.MintSize), token.MintSize, solana.TokenProgramID),
		token.InitializeMint(mint.PublicKey, 0, env.Payer.PublicKey, nil),
	}, mint)
	return env, mint.PublicKey
}

func TestCreate(t *testing.T) {
	env, mint := setup(t)
	wallet := env.NewKeypair().PublicKey

	ix, err := associated.Create(env.Payer.PublicKey, wallet, mint)
	require.NoError(t, err)
	res := env.MustSend([]solana.Instruction{ix})

	ata, err := associated.Address(wallet, mint)
	require.NoError(t, err)
	require.Equal(t, ix.Accounts[1].PublicKey, ata)

	acct := env.Account(ata)
	require.NotNil(t, acct)
	require.Equal(t, solana.TokenProgramID, acct.Owner)
	require.Equal(t, uint64(2039280), acct.Lamports)

	state, err := token.UnpackAccount(acct.Data)
	require.NoError(t, err)
	require.Equal(t, wallet, state.Owner)
	require.Equal(t, mint, state.Mint)
	require.Zero(t, state.Amount)
	require.Equal(t, token.AccountInitialized, state.State)

	require.Contains(t, res.Logs, "Program "+solana.SystemProgramID.String()+" invoke [2]")
	require.Contains(t, res.Logs, "Program "+solana.TokenProgramID.String()+" invoke [2]")
}

func TestCreate_Exists(t *testing.T) {
	env, mint := setup(t)
	wallet := env.NewKeypair().PublicKey

	ix, err := associated.Create(env.Payer.PublicKey, wallet, mint)
	require.NoError(t, err)
	env.MustSend([]solana.Instruction{ix})

	res := env.Send([]solana.Instruction{ix})
	runtimetest.RequireCustomError(t, res, 0, 0)

	idem, err := associated.CreateIdempotent(env.Payer.PublicKey, wallet, mint)
	require.NoError(t, err)
	env.MustSend([]solana.Instruction{idem})
}

func TestCreate_WrongAddress(t *testing.T) {
	env, mint := setup(t)
	wallet := env.NewKeypair().PublicKey

	ix, err := associated.Create(env.Payer.PublicKey, wallet, mint)
	require.NoError(t, err)
	ix.Accounts[1].PublicKey = env.NewKeypair().PublicKey

	res := env.Send([]solana.Instruction{ix})
	runtimetest.RequireInstructionError(t, res, 0, solana.IxErrInvalidSeeds)
}

func TestCreate_UninitializedMint(t *testing.T) {
	env, _ := setup(t)
	wallet := env.NewKeypair().PublicKey
	notMint := env.NewKeypair().PublicKey

	ix, err := associated.Create(env.Payer.PublicKey, wallet, notMint)
	require.NoError(t, err)

	before := env.Balance(env.Payer.PublicKey)
	res := env.Send([]solana.Instruction{ix})
	runtimetest.RequireCustomError(t, res, 0, 2)
	require.Equal(t, before, env.Balance(env.Payer.PublicKey))
}
