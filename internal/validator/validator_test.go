package validator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-nft-lab/internal/config"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/solana"
)

func testMetrics() Option {
	return WithMetrics(observability.NewMetrics("test", prometheus.NewRegistry()))
}

func TestNewInMemory(t *testing.T) {
	ctx := context.Background()
	v, err := NewInMemory(ctx, zaptest.NewLogger(t), testMetrics())
	require.NoError(t, err)
	defer v.Close()

	for _, id := range []solana.PublicKey{
		solana.SystemProgramID,
		solana.TokenProgramID,
		solana.AssociatedTokenProgramID,
		solana.MetadataProgramID,
		nft.ProgramID,
	} {
		acct, err := v.Runtime.Account(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, acct, id.String())
		assert.True(t, acct.Executable)
	}

	faucet, err := v.Runtime.Account(ctx, v.Faucet.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Ledger.FaucetLamports, faucet.Lamports)
}

func TestFaucetIsDeterministic(t *testing.T) {
	a, err := loadFaucet("")
	require.NoError(t, err)
	b, err := loadFaucet("")
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey, b.PublicKey)
}

func TestFaucetFromFile(t *testing.T) {
	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "faucet.json")
	require.NoError(t, solana.SaveKeypairFile(path, kp))

	cfg := config.Default()
	cfg.Ledger.FaucetKeypair = path
	v, err := New(context.Background(), &cfg, zaptest.NewLogger(t), testMetrics())
	require.NoError(t, err)
	defer v.Close()
	assert.Equal(t, kp.PublicKey, v.Faucet.PublicKey)
}

func TestAirdrop(t *testing.T) {
	ctx := context.Background()
	v, err := NewInMemory(ctx, zaptest.NewLogger(t), testMetrics())
	require.NoError(t, err)
	defer v.Close()

	to := solana.PublicKey{42}
	for i := 0; i < 2; i++ {
		sig, err := v.Airdrop(ctx, to, solana.LamportsPerSOL)
		require.NoError(t, err)
		_, ok := v.Runtime.Transaction(sig)
		assert.True(t, ok)
	}

	acct, err := v.Runtime.Account(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, 2*solana.LamportsPerSOL, acct.Lamports)
}

func TestAirdrop_FaucetDry(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.FaucetLamports = solana.LamportsPerSOL
	v, err := New(context.Background(), &cfg, zaptest.NewLogger(t), testMetrics())
	require.NoError(t, err)
	defer v.Close()

	_, err = v.Airdrop(context.Background(), solana.PublicKey{1}, 2*solana.LamportsPerSOL)
	assert.ErrorIs(t, err, ErrFaucetDry)
}

func TestPebbleBackend_Resumes(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Ledger.Backend = config.BackendPebble
	cfg.Ledger.PebblePath = filepath.Join(t.TempDir(), "ledger")

	v, err := New(ctx, &cfg, zaptest.NewLogger(t), testMetrics())
	require.NoError(t, err)
	_, err = v.Airdrop(ctx, solana.PublicKey{7}, 1000)
	require.NoError(t, err)
	require.NoError(t, v.Close())

	v, err = New(ctx, &cfg, zaptest.NewLogger(t), testMetrics())
	require.NoError(t, err)
	defer v.Close()
	assert.Equal(t, uint64(1), v.Runtime.Slot())

	acct, err := v.Runtime.Account(ctx, solana.PublicKey{7})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), acct.Lamports)
}
