package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-nft-lab/internal/harness"
	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/validator"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")

	out, err := run(t, "keygen", "--outfile", path)
	require.NoError(t, err)

	kp, err := solana.LoadKeypairFile(path)
	require.NoError(t, err)
	assert.Contains(t, out, kp.PublicKey.String())

	_, err = run(t, "keygen", "--outfile", path)
	require.Error(t, err)

	_, err = run(t, "keygen", "--outfile", path, "--force")
	require.NoError(t, err)
	again, err := solana.LoadKeypairFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, kp.PublicKey, again.PublicKey)
}

func TestScenario_Local(t *testing.T) {
	csv := filepath.Join(t.TempDir(), "report.csv")

	out, err := run(t, "scenario", "--local", "--csv", csv, "initialize", "create-nft")
	require.NoError(t, err, out)
	assert.Contains(t, out, "# Scenario Report")
	assert.Contains(t, out, "create-nft")

	raw, err := os.ReadFile(csv)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "scenario,status,duration_ms")
	assert.Contains(t, string(raw), "initialize,PASS")
}

func TestScenario_UnknownName(t *testing.T) {
	_, err := run(t, "scenario", "--local", "no-such-scenario")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-scenario")
}

func TestScenario_List(t *testing.T) {
	out, err := run(t, "scenario", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "transfer-round-trip")
	assert.Contains(t, out, "deploy")
}

func TestDeploy_Local(t *testing.T) {
	minter := filepath.Join(t.TempDir(), "minter.json")

	out, err := run(t, "deploy", "--local", "--minter-out", minter, "--name", "Deployed")
	require.NoError(t, err, out)

	kp, err := solana.LoadKeypairFile(minter)
	require.NoError(t, err)
	assert.Contains(t, out, "mint       "+kp.PublicKey.String())

	records, err := harness.Records(kp.PublicKey, solana.PublicKey{})
	require.NoError(t, err)
	assert.Contains(t, out, records.Metadata.String())
	assert.Contains(t, out, records.Edition.String())
}

func TestInspect_BadAddress(t *testing.T) {
	_, err := run(t, "inspect", "not-an-address")
	require.Error(t, err)
}

func TestPrintSnapshot(t *testing.T) {
	ctx := context.Background()
	v, err := validator.NewInMemory(ctx, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	h := harness.New(v.Client(), zap.NewNop())
	owner, err := h.Wallet(ctx, solana.LamportsPerSOL)
	require.NoError(t, err)

	bare, err := solana.NewKeypair()
	require.NoError(t, err)
	require.NoError(t, h.InitializeNft(ctx, owner, bare))
	snap, err := h.Inspect(ctx, bare.PublicKey, 10)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printSnapshot(&out, snap, 0))
	assert.Regexp(t, `supply\s+0\n`, out.String())
	assert.Regexp(t, `metadata\s+-\n`, out.String())
	assert.Regexp(t, `edition\s+-\n`, out.String())

	minter, err := solana.NewKeypair()
	require.NoError(t, err)
	_, err = h.CreateNft(ctx, owner, minter, nft.MetadataArgs{Name: "Shown", Symbol: "SHW", URI: "https://example.com/shown.json"})
	require.NoError(t, err)
	snap, err = h.Inspect(ctx, minter.PublicKey, 10)
	require.NoError(t, err)
	require.Len(t, snap.History, 1)

	out.Reset()
	require.NoError(t, printSnapshot(&out, snap, 1_461_600))
	assert.Regexp(t, `supply\s+1\n`, out.String())
	assert.Regexp(t, `name\s+Shown\n`, out.String())
	assert.Regexp(t, `rent\s+0.0014616 SOL\n`, out.String())
	assert.Contains(t, out.String(), snap.History[0].Signature.String())
}
