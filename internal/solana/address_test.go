package solana

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProgramAddress(t *testing.T) {
	programID := MustParsePublicKey("BPFLoader1111111111111111111111111111111111")
	seedKey, err := base58.Decode("SeedPubey1111111111111111111111111111111111")
	require.NoError(t, err)

	_, err = CreateProgramAddress(programID, make([]byte, MaxSeedLength+1))
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
	_, err = CreateProgramAddress(programID, []byte("short seed"), make([]byte, MaxSeedLength+1))
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
	_, err = CreateProgramAddress(programID, make([][]byte, MaxSeeds+1)...)
	assert.ErrorIs(t, err, ErrTooManySeeds)

	_, err = CreateProgramAddress(programID, make([]byte, MaxSeedLength))
	assert.NoError(t, err)

	tests := []struct {
		name     string
		seeds    [][]byte
		expected string
	}{
		{"empty and one", [][]byte{{}, {1}}, "3gF2KMe9KiC6FNVBmfg9i267aMPvK37FewCip4eGBFcT"},
		{"unicode", [][]byte{[]byte("☉")}, "7ytmC1nT1xY4RfxCV2ZgyA7UakC93do5ZdyhdF3EtPj7"},
		{"two words", [][]byte{[]byte("Talking"), []byte("Squirrels")}, "HwRVBufQ4haG5XSgpspwKtNd3PC9GM9m1196uJW36vds"},
		{"public key", [][]byte{seedKey}, "GUs5qLUfsEHkcMB9T38vjr18ypEhRuNWiePW2LoK4E3K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateProgramAddress(programID, tt.seeds...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}

	a, err := CreateProgramAddress(programID, []byte("Talking"))
	require.NoError(t, err)
	b, err := CreateProgramAddress(programID, []byte("Talking"), []byte("Squirrels"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFindProgramAddress_Reference(t *testing.T) {
	refs := map[string]string{
		"4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM":  "Bn9pAWUXWc5Kd849xTkQcHqiCbHUEizLFn4r5Cf8XYnd",
		"8opHzTAnfzRpPEx21XtnrVTX28YQuCpAjcn1PczScKh":  "oDvUHiiGdMo31xYzjefAzUekWH8EbCKrxgs2FkyTs1S",
		"CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3":  "B2vBn2bmF9GuaGkebrm8oUqDC34pE6m4bagjNcVE6msv",
		"21Z7hRtGQYRi8NocdZzhRuBRt9UZbFXbm1dKYvevp4vB": "9PPbRbNP3rqwzk16r7NDBzk1YDfo9EpWDWSqCYLn5eaF",
		"2M59vuWgsiuHAqQVB6KvuXuaBCJR8138gMAm4uCuR6Du": "E5dLtHAM353EPnHyuZ32sKREn26VW4Y8bzb2KQJTBHQh",
	}

	for program, expected := range refs {
		got, _, err := FindProgramAddress(MustParsePublicKey(program), []byte("Lil'"), []byte("Bits"))
		require.NoError(t, err)
		assert.Equal(t, expected, got.String(), "program %s", program)
	}
}

func TestFindProgramAddress_BumpReproducesAddress(t *testing.T) {
	for i := 0; i < 50; i++ {
		kp, err := NewKeypair()
		require.NoError(t, err)

		addr, bump, err := FindProgramAddress(TokenProgramID, kp.PublicKey[:], []byte("seed"))
		require.NoError(t, err)
		assert.False(t, IsOnCurve(addr[:]))

		again, err := CreateProgramAddress(TokenProgramID, kp.PublicKey[:], []byte("seed"), []byte{bump})
		require.NoError(t, err)
		assert.Equal(t, addr, again)
	}
}

func TestDerivedAccountAddresses(t *testing.T) {
	mint, err := NewKeypair()
	require.NoError(t, err)
	wallet, err := NewKeypair()
	require.NoError(t, err)

	meta1, _, err := FindMetadataAddress(mint.PublicKey)
	require.NoError(t, err)
	meta2, _, err := FindMetadataAddress(mint.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, meta1, meta2, "derivation must be deterministic")

	edition, _, err := FindMasterEditionAddress(mint.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, meta1, edition)

	ata, _, err := FindAssociatedTokenAddress(wallet.PublicKey, mint.PublicKey)
	require.NoError(t, err)
	other, _, err := FindAssociatedTokenAddress(mint.PublicKey, wallet.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, ata, other, "wallet and mint are not interchangeable")
}

func TestIsOnCurve(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)
	assert.True(t, IsOnCurve(kp.PublicKey[:]))
	assert.False(t, IsOnCurve([]byte{1, 2, 3}))
}
