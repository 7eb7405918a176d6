package solana

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/solana/shortvec"
)

// Marshal encodes the transaction in wire format.
func (t Transaction) Marshal() []byte {
	b := &bytes.Buffer{}
	_, _ = shortvec.EncodeLen(b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	b.Write(t.Message.Marshal())
	return b.Bytes()
}

// Unmarshal decodes a wire-format transaction.
func (t *Transaction) Unmarshal(data []byte) error {
	r := bytes.NewReader(data)

	n, err := shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "read signature count")
	}
	t.Signatures = make([]Signature, n)
	for i := range t.Signatures {
		if _, err := io.ReadFull(r, t.Signatures[i][:]); err != nil {
			return errors.Wrapf(err, "read signature %d", i)
		}
	}

	rest, _ := io.ReadAll(r)
	return t.Message.Unmarshal(rest)
}

// MarshalBase64 is the encoding sendTransaction expects.
func (t Transaction) MarshalBase64() string {
	return base64.StdEncoding.EncodeToString(t.Marshal())
}

// UnmarshalBase64 decodes a base64 wire-format transaction.
func (t *Transaction) UnmarshalBase64(s string) error {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "decode base64 transaction")
	}
	return t.Unmarshal(raw)
}

// Marshal encodes the message; the result is what signers sign.
func (m Message) Marshal() []byte {
	b := &bytes.Buffer{}
	b.WriteByte(m.Header.NumSignatures)
	b.WriteByte(m.Header.NumReadonlySigned)
	b.WriteByte(m.Header.NumReadonly)

	_, _ = shortvec.EncodeLen(b, len(m.Accounts))
	for _, a := range m.Accounts {
		b.Write(a[:])
	}

	b.Write(m.RecentBlockhash[:])

	_, _ = shortvec.EncodeLen(b, len(m.Instructions))
	for _, c := range m.Instructions {
		b.WriteByte(c.ProgramIndex)
		_, _ = shortvec.EncodeLen(b, len(c.Accounts))
		b.Write(c.Accounts)
		_, _ = shortvec.EncodeLen(b, len(c.Data))
		b.Write(c.Data)
	}
	return b.Bytes()
}

// Unmarshal decodes a legacy message.
func (m *Message) Unmarshal(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty message")
	}
	if data[0]&0x80 != 0 {
		return errors.New("versioned messages are not supported")
	}

	r := bytes.NewReader(data)
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return errors.Wrap(err, "read header")
	}
	m.Header = Header{NumSignatures: header[0], NumReadonlySigned: header[1], NumReadonly: header[2]}

	n, err := shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "read account count")
	}
	m.Accounts = make([]PublicKey, n)
	for i := range m.Accounts {
		if _, err := io.ReadFull(r, m.Accounts[i][:]); err != nil {
			return errors.Wrapf(err, "read account %d", i)
		}
	}

	if _, err := io.ReadFull(r, m.RecentBlockhash[:]); err != nil {
		return errors.Wrap(err, "read recent blockhash")
	}

	n, err = shortvec.DecodeLen(r)
	if err != nil {
		return errors.Wrap(err, "read instruction count")
	}
	m.Instructions = make([]CompiledInstruction, n)
	for i := range m.Instructions {
		c := &m.Instructions[i]
		if c.ProgramIndex, err = r.ReadByte(); err != nil {
			return errors.Wrapf(err, "read instruction %d program index", i)
		}
		if int(c.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("instruction %d program index %d out of range", i, c.ProgramIndex)
		}

		if c.Accounts, err = readShortvecBytes(r); err != nil {
			return errors.Wrapf(err, "read instruction %d accounts", i)
		}
		for _, a := range c.Accounts {
			if int(a) >= len(m.Accounts) {
				return errors.Errorf("instruction %d account index %d out of range", i, a)
			}
		}
		if c.Data, err = readShortvecBytes(r); err != nil {
			return errors.Wrapf(err, "read instruction %d data", i)
		}
	}

	if r.Len() != 0 {
		return errors.Errorf("%d trailing bytes after message", r.Len())
	}
	if int(m.Header.NumSignatures) > len(m.Accounts) {
		return errors.New("header declares more signers than accounts")
	}
	return nil
}

func readShortvecBytes(r *bytes.Reader) ([]byte, error) {
	n, err := shortvec.DecodeLen(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
