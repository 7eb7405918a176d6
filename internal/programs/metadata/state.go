// Package metadata implements the token metadata program: metadata records
// and master editions for mints, at addresses derived from the mint.
package metadata

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/solana"
)

// Account discriminators stored in the first byte.
type Key uint8

const (
	KeyUninitialized   Key = 0
	KeyMasterEditionV2 Key = 6
	KeyMetadataV1      Key = 4
)

// TokenStandard classifies the mint a metadata record describes.
type TokenStandard uint8

const (
	NonFungible TokenStandard = iota
	FungibleAsset
	Fungible
	NonFungibleEdition
)

// Field limits.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
	MaxCreatorLimit = 5
	MaxBasisPoints  = 10000
)

// Account sizes.
const (
	creatorLen          = 34
	MaxMetadataLen      = 679
	MaxMasterEditionLen = 282
)

var ErrInvalidLayout = errors.New("metadata: invalid account data")

// Creator is a royalty recipient.
type Creator struct {
	Address  [32]uint8
	Verified bool
	Share    uint8
}

// Collection links an item to a collection mint.
type Collection struct {
	Verified bool
	Key      [32]uint8
}

// Uses limits how often an item can be used.
type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

// DataV2 is the user-editable part of a metadata record.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator
	Collection           *Collection
	Uses                 *Uses
}

// Metadata is a decoded metadata account.
type Metadata struct {
	Key                  Key
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8
	TokenStandard        *TokenStandard
	Collection           *Collection
	Uses                 *Uses
}

// MasterEdition is a decoded master edition account.
type MasterEdition struct {
	Key       Key
	Supply    uint64
	MaxSupply *uint64
}

// Metaplex stores strings padded with NUL bytes to their maximum length.
func puff(s string, size int) string {
	if len(s) >= size {
		return s
	}
	return s + strings.Repeat("\x00", size-len(s))
}

func unpuff(s string) string {
	return strings.TrimRight(s, "\x00")
}

// Pack encodes m into a MaxMetadataLen buffer.
func (m *Metadata) Pack() []byte {
	w := &encoder{buf: make([]byte, 0, MaxMetadataLen)}
	w.u8(uint8(KeyMetadataV1))
	w.bytes(m.UpdateAuthority[:])
	w.bytes(m.Mint[:])
	w.str(puff(m.Name, MaxNameLength))
	w.str(puff(m.Symbol, MaxSymbolLength))
	w.str(puff(m.URI, MaxURILength))
	w.u16(m.SellerFeeBasisPoints)
	if m.Creators == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.u32(uint32(len(m.Creators)))
		for _, c := range m.Creators {
			w.bytes(c.Address[:])
			w.boolean(c.Verified)
			w.u8(c.Share)
		}
	}
	w.boolean(m.PrimarySaleHappened)
	w.boolean(m.IsMutable)
	if m.EditionNonce == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.u8(*m.EditionNonce)
	}
	if m.TokenStandard == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.u8(uint8(*m.TokenStandard))
	}
	if m.Collection == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.boolean(m.Collection.Verified)
		w.bytes(m.Collection.Key[:])
	}
	if m.Uses == nil {
		w.u8(0)
	} else {
		w.u8(1)
		w.u8(m.Uses.UseMethod)
		w.u64(m.Uses.Remaining)
		w.u64(m.Uses.Total)
	}

	data := make([]byte, MaxMetadataLen)
	copy(data, w.buf)
	return data
}

// UnpackMetadata decodes a metadata account. Trailing zero padding is
// ignored and optional trailing fields may be absent.
func UnpackMetadata(data []byte) (*Metadata, error) {
	r := &decoder{buf: data}
	m := &Metadata{Key: Key(r.u8())}
	if r.err == nil && m.Key != KeyMetadataV1 {
		return nil, errors.Wrapf(ErrInvalidLayout, "key %d", m.Key)
	}
	copy(m.UpdateAuthority[:], r.bytes(32))
	copy(m.Mint[:], r.bytes(32))
	m.Name = unpuff(r.str())
	m.Symbol = unpuff(r.str())
	m.URI = unpuff(r.str())
	m.SellerFeeBasisPoints = r.u16()
	if r.u8() == 1 {
		n := r.u32()
		if n > MaxCreatorLimit {
			return nil, errors.Wrapf(ErrInvalidLayout, "%d creators", n)
		}
		m.Creators = make([]Creator, n)
		for i := range m.Creators {
			copy(m.Creators[i].Address[:], r.bytes(32))
			m.Creators[i].Verified = r.boolean()
			m.Creators[i].Share = r.u8()
		}
	}
	m.PrimarySaleHappened = r.boolean()
	m.IsMutable = r.boolean()
	if r.err != nil {
		return nil, r.err
	}

	// Older records end here.
	if r.remaining() == 0 {
		return m, nil
	}
	if r.u8() == 1 {
		nonce := r.u8()
		m.EditionNonce = &nonce
	}
	if r.u8() == 1 {
		ts := TokenStandard(r.u8())
		m.TokenStandard = &ts
	}
	if r.u8() == 1 {
		m.Collection = &Collection{Verified: r.boolean()}
		copy(m.Collection.Key[:], r.bytes(32))
	}
	if r.u8() == 1 {
		m.Uses = &Uses{UseMethod: r.u8(), Remaining: r.u64(), Total: r.u64()}
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// Pack encodes e into a MaxMasterEditionLen buffer.
func (e *MasterEdition) Pack() []byte {
	data := make([]byte, MaxMasterEditionLen)
	data[0] = byte(KeyMasterEditionV2)
	binary.LittleEndian.PutUint64(data[1:9], e.Supply)
	if e.MaxSupply != nil {
		data[9] = 1
		binary.LittleEndian.PutUint64(data[10:18], *e.MaxSupply)
	}
	return data
}

// UnpackMasterEdition decodes a master edition account.
func UnpackMasterEdition(data []byte) (*MasterEdition, error) {
	if len(data) < 10 || Key(data[0]) != KeyMasterEditionV2 {
		return nil, ErrInvalidLayout
	}
	e := &MasterEdition{Key: KeyMasterEditionV2, Supply: binary.LittleEndian.Uint64(data[1:9])}
	if data[9] == 1 {
		if len(data) < 18 {
			return nil, ErrInvalidLayout
		}
		v := binary.LittleEndian.Uint64(data[10:18])
		e.MaxSupply = &v
	}
	return e, nil
}

type encoder struct {
	buf []byte
}

func (w *encoder) u8(v uint8)     { w.buf = append(w.buf, v) }
func (w *encoder) bytes(b []byte) { w.buf = append(w.buf, b...) }
func (w *encoder) u16(v uint16)   { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *encoder) u32(v uint32)   { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *encoder) u64(v uint64)   { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *encoder) str(s string)   { w.u32(uint32(len(s))); w.buf = append(w.buf, s...) }
func (w *encoder) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// decoder reads little-endian fields and latches the first error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (r *decoder) remaining() int { return len(r.buf) - r.off }

func (r *decoder) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if n < 0 || r.remaining() < n {
		r.err = errors.Wrapf(ErrInvalidLayout, "short read at offset %d", r.off)
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *decoder) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = errors.Wrapf(ErrInvalidLayout, format+" at offset %d", append(args, r.off)...)
	}
}

// option reads a one byte Some/None tag.
func (r *decoder) option() bool {
	switch tag := r.u8(); tag {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("option tag %d", tag)
		return false
	}
}

func (r *decoder) u8() uint8     { return r.bytes(1)[0] }
func (r *decoder) boolean() bool { return r.u8() == 1 }
func (r *decoder) u16() uint16   { return binary.LittleEndian.Uint16(r.bytes(2)) }
func (r *decoder) u32() uint32   { return binary.LittleEndian.Uint32(r.bytes(4)) }
func (r *decoder) u64() uint64   { return binary.LittleEndian.Uint64(r.bytes(8)) }

func (r *decoder) str() string {
	n := r.u32()
	if int(n) > r.remaining() {
		r.err = errors.Wrapf(ErrInvalidLayout, "string length %d at offset %d", n, r.off)
		return ""
	}
	return string(r.bytes(int(n)))
}
