package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	"solana-nft-lab/internal/solana"
)

func TestDecodeSetAuthority(t *testing.T) {
	next := solana.PublicKey{7}

	kind, key, err := decodeSetAuthority(SetAuthority(solana.PublicKey{1}, solana.PublicKey{2}, AuthorityFreezeAccount, nil).Data)
	require.NoError(t, err)
	require.Equal(t, AuthorityFreezeAccount, kind)
	require.Nil(t, key)

	kind, key, err = decodeSetAuthority(SetAuthority(solana.PublicKey{1}, solana.PublicKey{2}, AuthorityMintTokens, &next).Data)
	require.NoError(t, err)
	require.Equal(t, AuthorityMintTokens, kind)
	require.Equal(t, &next, key)
}

func TestDecodeInitializeMint(t *testing.T) {
	authority := solana.PublicKey{3}

	decimals, mintAuthority, freeze, err := decodeInitializeMint(InitializeMint(solana.PublicKey{1}, 9, authority, nil).Data)
	require.NoError(t, err)
	require.Equal(t, uint8(9), decimals)
	require.Equal(t, authority, mintAuthority)
	require.Nil(t, freeze)

	_, _, freeze, err = decodeInitializeMint(InitializeMint(solana.PublicKey{1}, 0, authority, &authority).Data)
	require.NoError(t, err)
	require.Equal(t, &authority, freeze)
}

func TestDecodeOptionalKey_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{InstructionSetAuthority}},
		{"bad tag", []byte{InstructionSetAuthority, 0, 2}},
		{"short key", []byte{InstructionSetAuthority, 0, 1, 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeSetAuthority(tt.data)
			require.ErrorIs(t, err, ErrInvalidInstruction)
		})
	}
}
