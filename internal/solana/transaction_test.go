package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeypair(t *testing.T) *Keypair {
	t.Helper()
	kp, err := NewKeypair()
	require.NoError(t, err)
	return kp
}

func TestNewTransaction_AccountOrdering(t *testing.T) {
	payer := newTestKeypair(t)
	signer := newTestKeypair(t)
	writable := newTestKeypair(t).PublicKey
	readonly := newTestKeypair(t).PublicKey

	ix := NewInstruction(TokenProgramID, []byte{1, 2, 3},
		NewReadonlyAccountMeta(readonly, false),
		NewAccountMeta(writable, false),
		NewReadonlyAccountMeta(signer.PublicKey, true),
		NewAccountMeta(payer.PublicKey, true),
	)
	tx := NewTransaction(payer.PublicKey, ix)

	m := tx.Message
	require.Len(t, m.Accounts, 5)
	assert.Equal(t, payer.PublicKey, m.Accounts[0])
	assert.Equal(t, signer.PublicKey, m.Accounts[1])
	assert.Equal(t, writable, m.Accounts[2])
	assert.Equal(t, readonly, m.Accounts[3])
	assert.Equal(t, TokenProgramID, m.Accounts[4])

	assert.Equal(t, Header{NumSignatures: 2, NumReadonlySigned: 1, NumReadonly: 2}, m.Header)
	assert.True(t, m.IsWritable(0))
	assert.False(t, m.IsWritable(1))
	assert.True(t, m.IsWritable(2))
	assert.False(t, m.IsWritable(3))
	assert.False(t, m.IsWritable(4))

	require.Len(t, m.Instructions, 1)
	assert.Equal(t, byte(4), m.Instructions[0].ProgramIndex)
	assert.Equal(t, []byte{3, 2, 1, 0}, m.Instructions[0].Accounts)
}

func TestTransaction_SignVerifyRoundTrip(t *testing.T) {
	payer := newTestKeypair(t)
	other := newTestKeypair(t)

	ix := NewInstruction(SystemProgramID, []byte{9},
		NewAccountMeta(payer.PublicKey, true),
		NewAccountMeta(other.PublicKey, true),
	)
	tx := NewTransaction(payer.PublicKey, ix)
	tx.SetBlockhash(Hash{1, 2, 3})

	assert.ErrorIs(t, tx.Verify(), ErrMissingSignature)

	require.NoError(t, tx.Sign(payer, other))
	require.NoError(t, tx.Verify())

	var decoded Transaction
	require.NoError(t, decoded.UnmarshalBase64(tx.MarshalBase64()))
	assert.Equal(t, tx.Signatures, decoded.Signatures)
	assert.Equal(t, tx.Message.Accounts, decoded.Message.Accounts)
	assert.Equal(t, tx.Message.RecentBlockhash, decoded.Message.RecentBlockhash)
	require.NoError(t, decoded.Verify())

	got, err := decoded.Message.Instruction(0)
	require.NoError(t, err)
	assert.Equal(t, SystemProgramID, got.Program)
	assert.Equal(t, []byte{9}, got.Data)
	assert.True(t, got.Accounts[1].IsSigner)

	decoded.Message.Instructions[0].Data = []byte{10}
	assert.ErrorIs(t, decoded.Verify(), ErrInvalidSignature)
}

func TestTransaction_SignRejectsNonSigner(t *testing.T) {
	payer := newTestKeypair(t)
	stranger := newTestKeypair(t)

	tx := NewTransaction(payer.PublicKey, NewInstruction(SystemProgramID, nil))
	assert.Error(t, tx.Sign(stranger))
}

func TestMessage_UnmarshalRejectsGarbage(t *testing.T) {
	var m Message
	assert.Error(t, m.Unmarshal(nil))
	assert.Error(t, m.Unmarshal([]byte{0x80, 0, 0}))
	assert.Error(t, m.Unmarshal([]byte{1, 0, 0, 1}))
}
