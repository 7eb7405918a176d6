// Package validator assembles a single-node cluster: the runtime, the builtin
// programs, the configured ledger and event stores, and a faucet.
package validator

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-lab/internal/config"
	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/programs"
	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
	chstore "solana-nft-lab/internal/storage/clickhouse"
	"solana-nft-lab/internal/storage/memory"
	"solana-nft-lab/internal/storage/migrations"
	"solana-nft-lab/internal/storage/pebble"
	pgstore "solana-nft-lab/internal/storage/postgres"
)

// ErrFaucetDry is returned when the faucet cannot cover an airdrop.
var ErrFaucetDry = errors.New("faucet balance too low")

// Validator is a running local cluster.
type Validator struct {
	Runtime *runtime.Runtime
	Faucet  *solana.Keypair

	accounts storage.AccountStore
	events   storage.EventStore
	log      *zap.Logger
	closers  []func() error

	// airdrops from the faucet are serialized so that two identical
	// requests never sign the same message against the same blockhash.
	airdropMu sync.Mutex
}

// Option configures New.
type Option func(*options)

type options struct {
	metrics *observability.Metrics
}

// WithMetrics overrides the default metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New opens the stores named by cfg, starts the runtime and applies genesis
// on an empty ledger.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*Validator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{metrics: observability.DefaultMetrics}
	for _, opt := range opts {
		opt(&o)
	}

	v := &Validator{log: log.With(zap.String("component", "validator"))}

	faucet, err := loadFaucet(cfg.Ledger.FaucetKeypair)
	if err != nil {
		return nil, err
	}
	v.Faucet = faucet

	if err := v.openStores(ctx, cfg, log, o.metrics); err != nil {
		v.Close()
		return nil, err
	}

	rtOpts := []runtime.Option{runtime.WithMetrics(o.metrics)}
	if v.events != nil {
		rtOpts = append(rtOpts, runtime.WithEventStore(v.events))
	}
	rt, err := runtime.New(ctx, runtime.Config{
		FeePerSignature:      cfg.Ledger.FeePerSignature,
		MaxRecentBlockhashes: cfg.Ledger.MaxRecentBlockhashes,
	}, v.accounts, log.With(zap.String("component", "runtime")), rtOpts...)
	if err != nil {
		v.Close()
		return nil, errors.Wrap(err, "start runtime")
	}
	rt.Register(programs.Builtins()...)
	v.Runtime = rt

	if err := rt.Genesis(ctx, map[solana.PublicKey]*domain.Account{
		faucet.PublicKey: {Lamports: cfg.Ledger.FaucetLamports, Owner: solana.SystemProgramID},
	}); err != nil {
		v.Close()
		return nil, err
	}

	v.log.Info("validator ready",
		zap.String("backend", cfg.Ledger.Backend),
		zap.Bool("clickhouse", cfg.Clickhouse.Enabled),
		zap.Stringer("faucet", faucet.PublicKey),
		zap.Uint64("slot", rt.Slot()),
	)
	return v, nil
}

// NewInMemory starts a validator on memory stores with default settings.
func NewInMemory(ctx context.Context, log *zap.Logger, opts ...Option) (*Validator, error) {
	cfg := config.Default()
	return New(ctx, &cfg, log, opts...)
}

// openStores opens the ledger and event stores. Durable backends report
// query latency under their backend name.
func (v *Validator) openStores(ctx context.Context, cfg *config.Config, log *zap.Logger, m *observability.Metrics) error {
	switch cfg.Ledger.Backend {
	case config.BackendMemory:
		v.accounts = memory.NewAccountStore()
	case config.BackendPebble:
		store, err := pebble.Open(cfg.Ledger.PebblePath)
		if err != nil {
			return err
		}
		v.accounts = storage.InstrumentAccounts(store, config.BackendPebble, m)
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		v.closers = append(v.closers, func() error { pool.Close(); return nil })
		if err := migrations.RunPostgresMigrations(ctx, pool, log); err != nil {
			return err
		}
		v.accounts = storage.InstrumentAccounts(pgstore.NewAccountStore(pool), config.BackendPostgres, m)
	default:
		return errors.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	v.closers = append(v.closers, v.accounts.Close)

	if !cfg.Clickhouse.Enabled {
		v.events = memory.NewEventStore()
		return nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN, log)
	if err != nil {
		return err
	}
	v.closers = append(v.closers, conn.Close)
	v.events = storage.InstrumentEvents(chstore.NewEventStore(conn), "clickhouse", m)
	return nil
}

// loadFaucet reads the faucet key from path, or derives the fixed
// development key when path is empty.
func loadFaucet(path string) (*solana.Keypair, error) {
	if path != "" {
		kp, err := solana.LoadKeypairFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "load faucet keypair")
		}
		return kp, nil
	}
	seed := sha256.Sum256([]byte("nftlab-faucet"))
	return solana.KeypairFromSeed(seed[:])
}

// Events returns the lifecycle event store.
func (v *Validator) Events() storage.EventStore {
	return v.events
}

// Airdrop transfers lamports from the faucet to addr and returns the
// committed transaction's signature.
func (v *Validator) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (solana.Signature, error) {
	v.airdropMu.Lock()
	defer v.airdropMu.Unlock()

	tx := solana.NewTransaction(v.Faucet.PublicKey, system.Transfer(v.Faucet.PublicKey, addr, lamports))
	hash, _ := v.Runtime.LatestBlockhash()
	tx.SetBlockhash(hash)
	if err := tx.Sign(v.Faucet); err != nil {
		return solana.Signature{}, errors.Wrap(err, "sign airdrop")
	}

	res, err := v.Runtime.Process(ctx, &tx)
	if err != nil {
		return solana.Signature{}, err
	}
	if res.Err != nil {
		if res.Err.Kind == solana.TxErrInsufficientFundsForFee || res.Err.Instruction != nil {
			return res.Signature, errors.Wrapf(ErrFaucetDry, "airdrop %d lamports: %v", lamports, res.Err)
		}
		return res.Signature, res.Err
	}

	v.log.Debug("airdrop",
		zap.Stringer("to", addr),
		zap.Uint64("lamports", lamports),
		zap.Stringer("signature", res.Signature),
	)
	return res.Signature, nil
}

// Close releases the stores in reverse open order.
func (v *Validator) Close() error {
	var first error
	for i := len(v.closers) - 1; i >= 0; i-- {
		if err := v.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	v.closers = nil
	return first
}
