package solana

import (
	"crypto/sha256"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrInvalidSeeds          = errors.New("seeds produce an address on the curve")
	ErrNoViableBump          = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress derives an address from seeds and a program id.
// The address is rejected if it is a valid ed25519 point, since such an
// address would have a private key.
func CreateProgramAddress(programID PublicKey, seeds ...[]byte) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, ErrTooManySeeds
	}

	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLength {
			return PublicKey{}, ErrMaxSeedLengthExceeded
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var pk PublicKey
	copy(pk[:], h.Sum(nil))
	if IsOnCurve(pk[:]) {
		return PublicKey{}, ErrInvalidSeeds
	}
	return pk, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(programID PublicKey, seeds ...[]byte) (PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return PublicKey{}, 0, ErrTooManySeeds
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		pk, err := CreateProgramAddress(programID, withBump...)
		if err == nil {
			return pk, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return PublicKey{}, 0, err
		}
	}
	return PublicKey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b decodes to an ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// FindMetadataAddress returns the Metaplex metadata account for a mint.
func FindMetadataAddress(mint PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(MetadataProgramID,
		[]byte("metadata"), MetadataProgramID[:], mint[:])
}

// FindMasterEditionAddress returns the Metaplex master edition account for a mint.
func FindMasterEditionAddress(mint PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(MetadataProgramID,
		[]byte("metadata"), MetadataProgramID[:], mint[:], []byte("edition"))
}

// FindAssociatedTokenAddress returns the canonical token account of wallet for mint.
func FindAssociatedTokenAddress(wallet, mint PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(AssociatedTokenProgramID,
		wallet[:], TokenProgramID[:], mint[:])
}
