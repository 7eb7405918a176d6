package system_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/runtime/runtimetest"
	"solana-nft-lab/internal/solana"
)

func TestTransfer(t *testing.T) {
	env := runtimetest.New(t, system.New())
	to := env.NewKeypair().PublicKey

	before := env.Balance(env.Payer.PublicKey)
	env.MustSend([]solana.Instruction{system.Transfer(env.Payer.PublicKey, to, 1_000_000)})

	require.Equal(t, uint64(1_000_000), env.Balance(to))
	require.Equal(t, before-1_000_000-5000, env.Balance(env.Payer.PublicKey))
}

func TestTransfer_InsufficientLamports(t *testing.T) {
	env := runtimetest.New(t, system.New())
	poor := env.NewKeypair()
	to := env.NewKeypair().PublicKey

	env.MustSend([]solana.Instruction{system.Transfer(env.Payer.PublicKey, poor.PublicKey, 10)})

	before := env.Balance(env.Payer.PublicKey)
	res := env.Send([]solana.Instruction{system.Transfer(poor.PublicKey, to, 11)}, poor)
	runtimetest.RequireCustomError(t, res, 0, 1)

	// Rejected transactions are not charged.
	require.Equal(t, before, env.Balance(env.Payer.PublicKey))
	require.Equal(t, uint64(10), env.Balance(poor.PublicKey))
	require.Zero(t, env.Balance(to))
}

func TestCreateAccount(t *testing.T) {
	env := runtimetest.New(t, system.New())
	acct := env.NewKeypair()

	env.MustSend([]solana.Instruction{
		system.CreateAccount(env.Payer.PublicKey, acct.PublicKey, runtime.RentExemptMinimum(82), 82, solana.TokenProgramID),
	}, acct)

	got := env.Account(acct.PublicKey)
	require.NotNil(t, got)
	require.Equal(t, solana.TokenProgramID, got.Owner)
	require.Len(t, got.Data, 82)
	require.Equal(t, uint64(1461600), got.Lamports)
}

func TestCreateAccount_AlreadyInUse(t *testing.T) {
	env := runtimetest.New(t, system.New())
	acct := env.NewKeypair()

	env.MustSend([]solana.Instruction{system.Transfer(env.Payer.PublicKey, acct.PublicKey, 1)})

	res := env.Send([]solana.Instruction{
		system.CreateAccount(env.Payer.PublicKey, acct.PublicKey, 1000, 0, solana.TokenProgramID),
	}, acct)
	runtimetest.RequireCustomError(t, res, 0, 0)
	require.Equal(t, solana.SystemProgramID, env.Account(acct.PublicKey).Owner)
}

func TestCreateAccount_NewAccountMustSign(t *testing.T) {
	env := runtimetest.New(t, system.New())
	acct := env.NewKeypair().PublicKey

	ix := system.CreateAccount(env.Payer.PublicKey, acct, 1000, 0, solana.TokenProgramID)
	ix.Accounts[1].IsSigner = false

	res := env.Send([]solana.Instruction{ix})
	runtimetest.RequireInstructionError(t, res, 0, solana.IxErrMissingRequiredSignature)
}

func TestAssignAndAllocate(t *testing.T) {
	env := runtimetest.New(t, system.New())
	acct := env.NewKeypair()

	env.MustSend([]solana.Instruction{
		system.Transfer(env.Payer.PublicKey, acct.PublicKey, runtime.RentExemptMinimum(10)),
		system.Allocate(acct.PublicKey, 10),
		system.Assign(acct.PublicKey, solana.TokenProgramID),
	}, acct)

	got := env.Account(acct.PublicKey)
	require.Equal(t, solana.TokenProgramID, got.Owner)
	require.Len(t, got.Data, 10)

	// The system program no longer owns the account.
	res := env.Send([]solana.Instruction{system.Assign(acct.PublicKey, solana.SystemProgramID)}, acct)
	runtimetest.RequireInstructionError(t, res, 0, solana.IxErrModifiedProgramID)
}

func TestProcess_BadData(t *testing.T) {
	env := runtimetest.New(t, system.New())

	ix := solana.NewInstruction(solana.SystemProgramID, []byte{99, 0, 0, 0}, solana.NewAccountMeta(env.Payer.PublicKey, true))
	res := env.Send([]solana.Instruction{ix})
	runtimetest.RequireInstructionError(t, res, 0, solana.IxErrInvalidInstructionData)
}
