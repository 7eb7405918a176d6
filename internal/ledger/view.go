// Package ledger holds the transactional view transactions execute against.
package ledger

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

// View buffers account writes over a committed store. Every write is
// recorded so the view can be rolled back to any earlier op index; nothing
// reaches the store until the caller commits Changes.
type View struct {
	base    storage.AccountReader
	pending map[solana.PublicKey]*domain.Account // nil marks a deletion
	ops     []op
}

type op struct {
	addr        solana.PublicKey
	pastChanged bool
	pastV       *domain.Account
}

// NewView creates an empty view over base.
func NewView(base storage.AccountReader) *View {
	return &View{
		base:    base,
		pending: make(map[solana.PublicKey]*domain.Account),
	}
}

// Get returns a copy of the account, or nil if it does not exist.
func (v *View) Get(ctx context.Context, addr solana.PublicKey) (*domain.Account, error) {
	if acct, ok := v.pending[addr]; ok {
		return acct.Clone(), nil
	}

	acct, err := v.base.GetAccount(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load account %s", addr)
	}
	return acct, nil
}

// Exists reports whether the account holds lamports or data.
func (v *View) Exists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	acct, err := v.Get(ctx, addr)
	if err != nil {
		return false, err
	}
	return acct != nil && (acct.Lamports > 0 || len(acct.Data) > 0), nil
}

// Set stores a copy of acct at addr.
func (v *View) Set(addr solana.PublicKey, acct *domain.Account) {
	v.record(addr)
	v.pending[addr] = acct.Clone()
}

// Delete removes the account at addr.
func (v *View) Delete(addr solana.PublicKey) {
	v.record(addr)
	v.pending[addr] = nil
}

func (v *View) record(addr solana.PublicKey) {
	past, changed := v.pending[addr]
	v.ops = append(v.ops, op{addr: addr, pastChanged: changed, pastV: past})
}

// OpIndex returns the number of writes so far, usable as a restore point.
func (v *View) OpIndex() int {
	return len(v.ops)
}

// Rollback undoes every write made after restorePoint.
func (v *View) Rollback(restorePoint int) {
	for i := len(v.ops) - 1; i >= restorePoint; i-- {
		o := v.ops[i]
		if !o.pastChanged {
			delete(v.pending, o.addr)
			continue
		}
		v.pending[o.addr] = o.pastV
	}
	v.ops = v.ops[:restorePoint]
}

// Changes returns the net effect of the view, ordered by address.
// Accounts left without lamports are reported as deletions.
func (v *View) Changes() []domain.AccountChange {
	changes := make([]domain.AccountChange, 0, len(v.pending))
	for addr, acct := range v.pending {
		if acct != nil && acct.Lamports == 0 {
			acct = nil
		}
		changes = append(changes, domain.AccountChange{Address: addr, Account: acct.Clone()})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Address.Compare(changes[j].Address) < 0
	})
	return changes
}
