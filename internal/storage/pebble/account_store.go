// Package pebble stores ledger accounts in an embedded pebble database.
package pebble

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

var (
	accountPrefix = []byte("a/")
	slotKey       = []byte("m/slot")
)

// accountRecord is the on-disk form of an account.
type accountRecord struct {
	Lamports   uint64
	Owner      [32]uint8
	Executable bool
	RentEpoch  uint64
	Data       []uint8
}

// AccountStore implements storage.AccountStore on pebble.
type AccountStore struct {
	db *pebble.DB
}

// Open opens (or creates) the database at dir.
func Open(dir string) (*AccountStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", dir)
	}
	return &AccountStore{db: db}, nil
}

var _ storage.AccountStore = (*AccountStore)(nil)

func accountKey(addr solana.PublicKey) []byte {
	k := make([]byte, 0, len(accountPrefix)+solana.PublicKeySize)
	k = append(k, accountPrefix...)
	return append(k, addr[:]...)
}

// GetAccount loads an account. Returns ErrNotFound if absent.
func (s *AccountStore) GetAccount(_ context.Context, addr solana.PublicKey) (*domain.Account, error) {
	v, closer, err := s.db.Get(accountKey(addr))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get account")
	}
	defer closer.Close()

	var rec accountRecord
	if err := borsh.Deserialize(&rec, v); err != nil {
		return nil, errors.Wrapf(err, "decode account %s", addr)
	}
	return &domain.Account{
		Lamports:   rec.Lamports,
		Owner:      solana.PublicKey(rec.Owner),
		Executable: rec.Executable,
		RentEpoch:  rec.RentEpoch,
		Data:       append([]byte{}, rec.Data...),
	}, nil
}

// ApplyChanges writes every change and the slot marker in one synced batch.
func (s *AccountStore) ApplyChanges(_ context.Context, slot uint64, changes []domain.AccountChange) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, c := range changes {
		if c.Account == nil {
			if err := batch.Delete(accountKey(c.Address), nil); err != nil {
				return errors.Wrap(err, "batch delete")
			}
			continue
		}
		data := c.Account.Data
		if data == nil {
			data = []byte{}
		}
		v, err := borsh.Serialize(accountRecord{
			Lamports:   c.Account.Lamports,
			Owner:      c.Account.Owner,
			Executable: c.Account.Executable,
			RentEpoch:  c.Account.RentEpoch,
			Data:       data,
		})
		if err != nil {
			return errors.Wrapf(err, "encode account %s", c.Address)
		}
		if err := batch.Set(accountKey(c.Address), v, nil); err != nil {
			return errors.Wrap(err, "batch set")
		}
	}

	var sb [8]byte
	binary.BigEndian.PutUint64(sb[:], slot)
	if err := batch.Set(slotKey, sb[:], nil); err != nil {
		return errors.Wrap(err, "batch set slot")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	return nil
}

// LastSlot returns the slot of the last applied batch, 0 for a fresh database.
func (s *AccountStore) LastSlot(_ context.Context) (uint64, error) {
	v, closer, err := s.db.Get(slotKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "get slot")
	}
	defer closer.Close()
	if len(v) != 8 {
		return 0, errors.Errorf("corrupt slot marker: %d bytes", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// Count walks the account prefix.
func (s *AccountStore) Count(_ context.Context) (int, error) {
	upper := append([]byte{}, accountPrefix...)
	upper[len(upper)-1]++

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: accountPrefix, UpperBound: upper})
	if err != nil {
		return 0, errors.Wrap(err, "iterate accounts")
	}
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), accountPrefix) {
			break
		}
		n++
	}
	if err := iter.Close(); err != nil {
		return 0, errors.Wrap(err, "iterate accounts")
	}
	return n, nil
}

func (s *AccountStore) Close() error {
	return s.db.Close()
}
