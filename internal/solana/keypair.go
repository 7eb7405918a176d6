package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Keypair is an ed25519 signing key and its address.
type Keypair struct {
	PublicKey  PublicKey
	PrivateKey ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate key")
	}
	return keypairFromPrivate(priv), nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("invalid seed length %d", len(seed))
	}
	return keypairFromPrivate(ed25519.NewKeyFromSeed(seed)), nil
}

func keypairFromPrivate(priv ed25519.PrivateKey) *Keypair {
	kp := &Keypair{PrivateKey: priv}
	copy(kp.PublicKey[:], priv.Public().(ed25519.PublicKey))
	return kp
}

// Sign signs message with the private key.
func (k *Keypair) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.PrivateKey, message))
	return sig
}

// LoadKeypairFile reads a keypair in the solana CLI format: a JSON array of
// the 64 secret key bytes.
func LoadKeypairFile(path string) (*Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read keypair file")
	}

	var b []byte
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, errors.Wrap(err, "parse keypair file")
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, errors.Errorf("keypair byte out of range: %d", v)
		}
		b = append(b, byte(v))
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid keypair length %d", len(b))
	}

	kp := keypairFromPrivate(ed25519.PrivateKey(b))
	if !kp.PrivateKey.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(b[32:])) {
		return nil, errors.New("keypair public half does not match secret")
	}
	return kp, nil
}

// SaveKeypairFile writes a keypair in the solana CLI format.
func SaveKeypairFile(path string, kp *Keypair) error {
	ints := make([]int, len(kp.PrivateKey))
	for i, v := range kp.PrivateKey {
		ints[i] = int(v)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return errors.Wrap(err, "encode keypair")
	}
	return errors.Wrap(os.WriteFile(path, raw, 0o600), "write keypair file")
}
