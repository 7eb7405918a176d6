// Package token implements the subset of the SPL token program used for
// single-supply NFTs: mints, token accounts, minting, transfers and
// authority changes.
package token

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/solana"
)

// Account data sizes.
const (
	MintSize    = 82
	AccountSize = 165
)

// AccountState is the state of a token account.
type AccountState uint8

const (
	AccountUninitialized AccountState = iota
	AccountInitialized
	AccountFrozen
)

// ErrInvalidLayout is returned when account data has the wrong size.
var ErrInvalidLayout = errors.New("token: invalid account data length")

// Mint is the SPL mint layout.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// Account is the SPL token account layout.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// UnpackMint decodes an 82 byte mint.
func UnpackMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, ErrInvalidLayout
	}
	m := &Mint{}
	m.MintAuthority = readCOptionKey(data[0:36])
	m.Supply = binary.LittleEndian.Uint64(data[36:44])
	m.Decimals = data[44]
	m.IsInitialized = data[45] == 1
	m.FreezeAuthority = readCOptionKey(data[46:82])
	return m, nil
}

// Pack encodes the mint into its 82 byte layout.
func (m *Mint) Pack() []byte {
	data := make([]byte, MintSize)
	writeCOptionKey(data[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(data[36:44], m.Supply)
	data[44] = m.Decimals
	if m.IsInitialized {
		data[45] = 1
	}
	writeCOptionKey(data[46:82], m.FreezeAuthority)
	return data
}

// UnpackAccount decodes a 165 byte token account.
func UnpackAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, ErrInvalidLayout
	}
	a := &Account{}
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])
	a.Amount = binary.LittleEndian.Uint64(data[64:72])
	a.Delegate = readCOptionKey(data[72:108])
	a.State = AccountState(data[108])
	if binary.LittleEndian.Uint32(data[109:113]) == 1 {
		v := binary.LittleEndian.Uint64(data[113:121])
		a.IsNative = &v
	}
	a.DelegatedAmount = binary.LittleEndian.Uint64(data[121:129])
	a.CloseAuthority = readCOptionKey(data[129:165])
	return a, nil
}

// Pack encodes the account into its 165 byte layout.
func (a *Account) Pack() []byte {
	data := make([]byte, AccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	writeCOptionKey(data[72:108], a.Delegate)
	data[108] = byte(a.State)
	if a.IsNative != nil {
		binary.LittleEndian.PutUint32(data[109:113], 1)
		binary.LittleEndian.PutUint64(data[113:121], *a.IsNative)
	}
	binary.LittleEndian.PutUint64(data[121:129], a.DelegatedAmount)
	writeCOptionKey(data[129:165], a.CloseAuthority)
	return data
}

// COption<Pubkey> is a u32 tag followed by 32 bytes, zeroed when absent.
func readCOptionKey(b []byte) *solana.PublicKey {
	if binary.LittleEndian.Uint32(b[0:4]) != 1 {
		return nil
	}
	var pk solana.PublicKey
	copy(pk[:], b[4:36])
	return &pk
}

func writeCOptionKey(b []byte, pk *solana.PublicKey) {
	if pk == nil {
		return
	}
	binary.LittleEndian.PutUint32(b[0:4], 1)
	copy(b[4:36], pk[:])
}
