// Package scenario holds the named lifecycle scenarios and runs them against
// a cluster through the harness.
package scenario

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"solana-nft-lab/internal/harness"
	"solana-nft-lab/internal/solana"
)

// Scenario is one named sequence of lifecycle operations with assertions.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) error
}

// Env is the per-run view of the harness. Wallets it hands out are tracked
// so the run can report what it spent.
type Env struct {
	*harness.Harness
	airdrop uint64

	mu      sync.Mutex
	wallets []*solana.Keypair
}

func newEnv(h *harness.Harness, airdrop uint64) *Env {
	return &Env{Harness: h, airdrop: airdrop}
}

// Wallet returns a freshly funded wallet.
func (e *Env) Wallet(ctx context.Context) (*solana.Keypair, error) {
	kp, err := e.Harness.Wallet(ctx, e.airdrop)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.wallets = append(e.wallets, kp)
	e.mu.Unlock()
	return kp, nil
}

// Spent returns the lamports the wallets no longer hold: fees plus what was
// moved into mint, holder and metadata accounts.
func (e *Env) Spent(ctx context.Context) (uint64, error) {
	e.mu.Lock()
	wallets := append([]*solana.Keypair(nil), e.wallets...)
	e.mu.Unlock()

	funded := e.airdrop * uint64(len(wallets))
	var held uint64
	for _, w := range wallets {
		b, err := e.RPC().GetBalance(ctx, w.PublicKey)
		if err != nil {
			return 0, errors.Wrapf(err, "balance of %s", w.PublicKey)
		}
		held += b
	}
	if held > funded {
		return 0, nil
	}
	return funded - held, nil
}

var registry = map[string]Scenario{}

func register(s Scenario) {
	if _, ok := registry[s.Name]; ok {
		panic("scenario: duplicate " + s.Name)
	}
	registry[s.Name] = s
}

// All returns every scenario sorted by name.
func All() []Scenario {
	out := make([]Scenario, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select returns the named scenarios in the given order; no names means all.
func Select(names []string) ([]Scenario, error) {
	if len(names) == 0 {
		return All(), nil
	}
	out := make([]Scenario, 0, len(names))
	var unknown []string
	for _, n := range names {
		s, ok := registry[n]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, s)
	}
	if len(unknown) > 0 {
		return nil, errors.Errorf("unknown scenarios: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
