package solana

import (
	"bytes"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// PublicKeySize is the size of an account address in bytes.
const PublicKeySize = 32

// PublicKey is an account address.
type PublicKey [PublicKeySize]byte

// Well-known program and sysvar addresses.
var (
	SystemProgramID          = MustParsePublicKey("11111111111111111111111111111111")
	TokenProgramID           = MustParsePublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParsePublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MetadataProgramID        = MustParsePublicKey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	RentSysvarID             = MustParsePublicKey("SysvarRent111111111111111111111111111111111")
	NativeLoaderID           = MustParsePublicKey("NativeLoader1111111111111111111111111111111")
)

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, errors.Wrapf(err, "decode address %q", s)
	}
	return PublicKeyFromBytes(b)
}

// MustParsePublicKey is ParsePublicKey for compile-time constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, errors.Errorf("invalid address length %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key bytes.
func (p PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeySize)
	copy(b, p[:])
	return b
}

func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// Compare orders keys bytewise.
func (p PublicKey) Compare(other PublicKey) int {
	return bytes.Compare(p[:], other[:])
}

func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PublicKey) UnmarshalText(text []byte) error {
	pk, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
