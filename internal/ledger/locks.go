package ledger

import (
	"sort"
	"sync"

	"solana-nft-lab/internal/solana"
)

// Locks serializes transactions that touch the same accounts. Writers are
// exclusive; readers share.
type Locks struct {
	mu sync.Mutex
	m  map[solana.PublicKey]*heldLock
}

type heldLock struct {
	holders int
	rw      sync.RWMutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{m: make(map[solana.PublicKey]*heldLock)}
}

// Acquire locks every address, writable ones exclusively, in address order
// so that concurrent callers cannot deadlock. An address listed in both sets
// is locked for writing. The returned func releases all locks.
func (l *Locks) Acquire(writable, readonly []solana.PublicKey) (release func()) {
	modes := make(map[solana.PublicKey]bool, len(writable)+len(readonly))
	for _, a := range readonly {
		modes[a] = false
	}
	for _, a := range writable {
		modes[a] = true
	}

	addrs := make([]solana.PublicKey, 0, len(modes))
	for a := range modes {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Compare(addrs[j]) < 0 })

	for _, a := range addrs {
		l.lock(a, modes[a])
	}

	return func() {
		for i := len(addrs) - 1; i >= 0; i-- {
			l.unlock(addrs[i], modes[addrs[i]])
		}
	}
}

func (l *Locks) lock(addr solana.PublicKey, write bool) {
	l.mu.Lock()
	hl, ok := l.m[addr]
	if !ok {
		hl = &heldLock{}
		l.m[addr] = hl
	}
	hl.holders++
	l.mu.Unlock()

	if write {
		hl.rw.Lock()
	} else {
		hl.rw.RLock()
	}
}

func (l *Locks) unlock(addr solana.PublicKey, write bool) {
	l.mu.Lock()
	hl := l.m[addr]
	hl.holders--
	if hl.holders == 0 {
		delete(l.m, addr)
	}
	l.mu.Unlock()

	if write {
		hl.rw.Unlock()
	} else {
		hl.rw.RUnlock()
	}
}

// Held returns the number of addresses with at least one holder or waiter.
func (l *Locks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
