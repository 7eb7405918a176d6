package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// MaxTransactionSize is the largest serialized transaction a node accepts.
const MaxTransactionSize = 1232

var (
	ErrMissingSignature = errors.New("transaction is missing a required signature")
	ErrInvalidSignature = errors.New("transaction signature verification failed")
)

// Signature is an ed25519 signature; the first one identifies a transaction.
type Signature [ed25519.SignatureSize]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

// ParseSignature decodes a base58 signature.
func ParseSignature(str string) (Signature, error) {
	var sig Signature
	b, err := base58.Decode(str)
	if err != nil {
		return sig, errors.Wrap(err, "decode signature")
	}
	if len(b) != len(sig) {
		return sig, errors.Errorf("invalid signature length %d", len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// Hash is a 32-byte hash, used for recent blockhashes.
type Hash [sha256.Size]byte

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// ParseHash decodes a base58 hash.
func ParseHash(str string) (Hash, error) {
	pk, err := ParsePublicKey(str)
	return Hash(pk), err
}

// Header counts the signing and read-only accounts of a message.
type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadonly       byte
}

// Message is the signed portion of a legacy transaction.
type Message struct {
	Header          Header
	Accounts        []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// Transaction is a message with its signatures.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles instructions into an unsigned transaction paid by payer.
func NewTransaction(payer PublicKey, instructions ...Instruction) Transaction {
	accounts := []AccountMeta{{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true}}
	for _, ix := range instructions {
		accounts = append(accounts, AccountMeta{PublicKey: ix.Program, isProgram: true})
		accounts = append(accounts, ix.Accounts...)
	}

	accounts = mergeAccountMetas(accounts)
	sortAccountMetas(accounts)

	var m Message
	index := make(map[PublicKey]byte, len(accounts))
	for i, a := range accounts {
		index[a.PublicKey] = byte(i)
		m.Accounts = append(m.Accounts, a.PublicKey)

		switch {
		case a.IsSigner:
			m.Header.NumSignatures++
			if !a.IsWritable {
				m.Header.NumReadonlySigned++
			}
		case !a.IsWritable:
			m.Header.NumReadonly++
		}
	}

	for _, ix := range instructions {
		c := CompiledInstruction{
			ProgramIndex: index[ix.Program],
			Data:         ix.Data,
		}
		for _, a := range ix.Accounts {
			c.Accounts = append(c.Accounts, index[a.PublicKey])
		}
		m.Instructions = append(m.Instructions, c)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the transaction id.
func (t *Transaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

func (t *Transaction) SetBlockhash(h Hash) {
	t.Message.RecentBlockhash = h
}

// Sign adds signatures for the given signers. Every signer must be one of
// the message's signing accounts.
func (t *Transaction) Sign(signers ...*Keypair) error {
	msg := t.Message.Marshal()
	for _, s := range signers {
		i := t.Message.IndexOf(s.PublicKey)
		if i < 0 || i >= int(t.Message.Header.NumSignatures) {
			return errors.Errorf("account %s is not a signer of this transaction", s.PublicKey)
		}
		t.Signatures[i] = s.Sign(msg)
	}
	return nil
}

// Verify checks that every required signature is present and valid.
func (t *Transaction) Verify() error {
	n := int(t.Message.Header.NumSignatures)
	if len(t.Signatures) != n || len(t.Message.Accounts) < n {
		return ErrMissingSignature
	}

	msg := t.Message.Marshal()
	for i := 0; i < n; i++ {
		if t.Signatures[i].IsZero() {
			return errors.Wrapf(ErrMissingSignature, "signer %s", t.Message.Accounts[i])
		}
		if !ed25519.Verify(t.Message.Accounts[i][:], msg, t.Signatures[i][:]) {
			return errors.Wrapf(ErrInvalidSignature, "signer %s", t.Message.Accounts[i])
		}
	}
	return nil
}

// IndexOf returns the position of pk in the account list, or -1.
func (m *Message) IndexOf(pk PublicKey) int {
	for i, a := range m.Accounts {
		if a == pk {
			return i
		}
	}
	return -1
}

// IsSigner reports whether the account at index i signed the message.
func (m *Message) IsSigner(i int) bool {
	return i < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index i may be modified.
func (m *Message) IsWritable(i int) bool {
	n := len(m.Accounts)
	signed := int(m.Header.NumSignatures)
	if i < signed {
		return i < signed-int(m.Header.NumReadonlySigned)
	}
	return i < n-int(m.Header.NumReadonly)
}

// Instruction expands a compiled instruction back to account keys.
func (m *Message) Instruction(i int) (Instruction, error) {
	if i < 0 || i >= len(m.Instructions) {
		return Instruction{}, errors.Errorf("instruction index %d out of range", i)
	}
	c := m.Instructions[i]
	if int(c.ProgramIndex) >= len(m.Accounts) {
		return Instruction{}, errors.Errorf("program index %d out of range", c.ProgramIndex)
	}

	ix := Instruction{Program: m.Accounts[c.ProgramIndex], Data: c.Data}
	for _, a := range c.Accounts {
		if int(a) >= len(m.Accounts) {
			return Instruction{}, errors.Errorf("account index %d out of range", a)
		}
		ix.Accounts = append(ix.Accounts, AccountMeta{
			PublicKey:  m.Accounts[a],
			IsSigner:   m.IsSigner(int(a)),
			IsWritable: m.IsWritable(int(a)),
		})
	}
	return ix, nil
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		fmt.Fprintf(&sb, "  %d: %s\n", i, s)
	}
	sb.WriteString("Message:\n")
	fmt.Fprintf(&sb, "  Header: %d signed (%d readonly), %d readonly\n",
		t.Message.Header.NumSignatures, t.Message.Header.NumReadonlySigned, t.Message.Header.NumReadonly)
	fmt.Fprintf(&sb, "  RecentBlockhash: %s\n", t.Message.RecentBlockhash)
	for i, a := range t.Message.Accounts {
		fmt.Fprintf(&sb, "  Account %d: %s\n", i, a)
	}
	for i, c := range t.Message.Instructions {
		fmt.Fprintf(&sb, "  Instruction %d: program=%d accounts=%v data=%x\n", i, c.ProgramIndex, c.Accounts, c.Data)
	}
	return sb.String()
}
