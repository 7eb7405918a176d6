package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-lab/internal/domain"
	"solana-nft-lab/internal/ledger"
	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/storage"
)

// Config holds runtime parameters.
type Config struct {
	// FeePerSignature is charged to the fee payer of every committed transaction.
	FeePerSignature uint64
	// MaxRecentBlockhashes is how many of the latest blockhashes a
	// transaction may reference.
	MaxRecentBlockhashes int
}

// DefaultConfig returns the parameters of a default test validator.
func DefaultConfig() Config {
	return Config{
		FeePerSignature:      5000,
		MaxRecentBlockhashes: 150,
	}
}

// Result is the outcome of processing one transaction.
type Result struct {
	Signature solana.Signature
	Slot      uint64 // zero unless committed
	Logs      []string
	Err       *solana.TransactionError
	Events    []domain.NftEvent
}

// TxRecord is a committed transaction.
type TxRecord struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime int64 // unix seconds
	Fee       uint64
	Logs      []string
	Accounts  []solana.PublicKey
	Events    []domain.NftEvent
}

// Listener is called once per committed transaction, in commit order.
type Listener func(rec *TxRecord)

// Runtime processes transactions against an account store. Transactions
// touching disjoint writable accounts execute in parallel; conflicting ones
// are serialized by the account locks.
type Runtime struct {
	cfg      Config
	store    storage.AccountStore
	events   storage.EventStore // optional
	locks    *ledger.Locks
	programs map[solana.PublicKey]Program
	log      *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu          sync.RWMutex
	slot        uint64
	blockhashes []solana.Hash
	validHashes map[solana.Hash]uint64
	records     map[solana.Signature]*TxRecord
	byAddress   map[solana.PublicKey][]solana.Signature

	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithEventStore persists lifecycle events after each commit.
func WithEventStore(s storage.EventStore) Option {
	return func(r *Runtime) { r.events = s }
}

// WithMetrics sets the metrics sink. Defaults to observability.DefaultMetrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithClock overrides the time source used for block times.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// New creates a runtime over store, resuming from the store's last slot.
func New(ctx context.Context, cfg Config, store storage.AccountStore, log *zap.Logger, opts ...Option) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRecentBlockhashes <= 0 {
		cfg.MaxRecentBlockhashes = DefaultConfig().MaxRecentBlockhashes
	}

	r := &Runtime{
		cfg:         cfg,
		store:       store,
		locks:       ledger.NewLocks(),
		programs:    make(map[solana.PublicKey]Program),
		log:         log,
		metrics:     observability.DefaultMetrics,
		now:         time.Now,
		validHashes: make(map[solana.Hash]uint64),
		records:     make(map[solana.Signature]*TxRecord),
		byAddress:   make(map[solana.PublicKey][]solana.Signature),
		listeners:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(r)
	}

	slot, err := store.LastSlot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load last slot")
	}
	r.slot = slot
	r.pushBlockhash(slotHash(slot, solana.Signature{}))

	return r, nil
}

// Register adds a builtin program.
func (r *Runtime) Register(programs ...Program) {
	for _, p := range programs {
		r.programs[p.ID()] = p
	}
}

func (r *Runtime) program(id solana.PublicKey) (Program, bool) {
	p, ok := r.programs[id]
	return p, ok
}

// Genesis seeds an empty ledger with accounts and an executable account for
// every registered program. It does nothing if the ledger already has state.
func (r *Runtime) Genesis(ctx context.Context, accounts map[solana.PublicKey]*domain.Account) error {
	n, err := r.store.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "count accounts")
	}
	if n > 0 {
		return nil
	}

	changes := make([]domain.AccountChange, 0, len(accounts)+len(r.programs))
	for id, p := range r.programs {
		changes = append(changes, domain.AccountChange{Address: id, Account: &domain.Account{
			Lamports:   1,
			Owner:      solana.NativeLoaderID,
			Executable: true,
			Data:       []byte(p.Name()),
		}})
	}
	for addr, acct := range accounts {
		changes = append(changes, domain.AccountChange{Address: addr, Account: acct})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.ApplyChanges(ctx, r.slot, changes); err != nil {
		return errors.Wrap(err, "apply genesis")
	}
	r.log.Info("genesis applied", zap.Int("accounts", len(changes)))
	return nil
}

// Process executes tx and commits it if every instruction succeeds. A failed
// transaction changes nothing and is not charged a fee. The returned error
// is reserved for internal failures such as an unavailable store.
func (r *Runtime) Process(ctx context.Context, tx *solana.Transaction) (*Result, error) {
	return r.process(ctx, tx, true)
}

// Simulate executes tx without committing it.
func (r *Runtime) Simulate(ctx context.Context, tx *solana.Transaction) (*Result, error) {
	return r.process(ctx, tx, false)
}

func (r *Runtime) process(ctx context.Context, tx *solana.Transaction, commit bool) (*Result, error) {
	start := time.Now()
	res := &Result{Signature: tx.Signature()}

	res.Err = r.sanitize(tx)
	if res.Err == nil {
		release := r.lock(&tx.Message)
		defer release()

		if commit && r.processed(res.Signature) {
			res.Err = solana.NewTransactionError(solana.TxErrAlreadyProcessed)
		} else if err := r.execute(ctx, tx, res, commit); err != nil {
			return nil, err
		}
	}

	errKind := ""
	if res.Err != nil {
		errKind = res.Err.Kind
		r.log.Debug("transaction rejected",
			zap.Stringer("signature", res.Signature),
			zap.Error(res.Err),
		)
	}
	if commit {
		r.metrics.RecordTransaction(errKind, time.Since(start).Seconds())
	}
	return res, nil
}

// sanitize runs the checks that need no account state.
func (r *Runtime) sanitize(tx *solana.Transaction) *solana.TransactionError {
	if len(tx.Message.Accounts) == 0 || len(tx.Message.Instructions) == 0 {
		return solana.NewTransactionError(solana.TxErrInvalidAccountIndex)
	}
	for _, c := range tx.Message.Instructions {
		if int(c.ProgramIndex) >= len(tx.Message.Accounts) {
			return solana.NewTransactionError(solana.TxErrInvalidAccountIndex)
		}
		for _, a := range c.Accounts {
			if int(a) >= len(tx.Message.Accounts) {
				return solana.NewTransactionError(solana.TxErrInvalidAccountIndex)
			}
		}
	}
	if tx.Message.Header.NumSignatures == 0 {
		return solana.NewTransactionError(solana.TxErrSignatureFailure)
	}
	if err := tx.Verify(); err != nil {
		return solana.NewTransactionError(solana.TxErrSignatureFailure)
	}
	if !r.IsBlockhashValid(tx.Message.RecentBlockhash) {
		return solana.NewTransactionError(solana.TxErrBlockhashNotFound)
	}
	return nil
}

func (r *Runtime) lock(m *solana.Message) func() {
	var writable, readonly []solana.PublicKey
	for i, a := range m.Accounts {
		if m.IsWritable(i) {
			writable = append(writable, a)
		} else {
			readonly = append(readonly, a)
		}
	}
	release := r.locks.Acquire(writable, readonly)
	r.metrics.AccountsLocked.Set(float64(r.locks.Held()))
	return func() {
		release()
		r.metrics.AccountsLocked.Set(float64(r.locks.Held()))
	}
}

// execute runs every instruction on a fresh view and commits on success.
// Account locks are held by the caller.
func (r *Runtime) execute(ctx context.Context, tx *solana.Transaction, res *Result, commit bool) error {
	exec := &execution{rt: r, view: ledger.NewView(r.store)}
	msg := &tx.Message

	payer := msg.Accounts[0]
	fee := r.cfg.FeePerSignature * uint64(len(tx.Signatures))
	payerAcct, err := exec.view.Get(ctx, payer)
	if err != nil {
		return err
	}
	if payerAcct == nil {
		res.Err = solana.NewTransactionError(solana.TxErrAccountNotFound)
		return nil
	}
	if payerAcct.Lamports < fee {
		res.Err = solana.NewTransactionError(solana.TxErrInsufficientFundsForFee)
		return nil
	}
	payerAcct.Lamports -= fee
	exec.view.Set(payer, payerAcct)

	for i := range msg.Instructions {
		ix, err := msg.Instruction(i)
		if err != nil {
			res.Err = solana.NewTransactionError(solana.TxErrInvalidAccountIndex)
			return nil
		}

		prog, ok := r.program(ix.Program)
		if !ok {
			res.Err = solana.NewInstructionError(i, solana.IxErrUnsupportedProgramID)
			return nil
		}

		ic := &InvokeContext{
			ctx:       ctx,
			exec:      exec,
			programID: ix.Program,
			accounts:  ix.Accounts,
			depth:     1,
		}
		if err := exec.run(ic, prog, ix.Data); err != nil {
			var perr *ProgramError
			if !errors.As(err, &perr) {
				return errors.Wrapf(err, "instruction %d", i)
			}
			res.Logs = exec.logs
			res.Err = perr.TransactionError(i)
			return nil
		}
	}

	changes := exec.view.Changes()
	balanced, err := r.balanced(ctx, changes, fee)
	if err != nil {
		return err
	}
	if !balanced {
		res.Logs = exec.logs
		res.Err = solana.NewInstructionError(len(msg.Instructions)-1, solana.IxErrUnbalancedInstruction)
		return nil
	}

	res.Logs = exec.logs
	res.Events = exec.events
	if !commit {
		return nil
	}
	return r.commit(ctx, tx, res, changes, fee)
}

// balanced checks that the transaction destroyed exactly fee lamports.
func (r *Runtime) balanced(ctx context.Context, changes []domain.AccountChange, fee uint64) (bool, error) {
	var before, after uint64
	for _, c := range changes {
		prior, err := r.store.GetAccount(ctx, c.Address)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return false, errors.Wrapf(err, "load account %s", c.Address)
		default:
			before += prior.Lamports
		}
		if c.Account != nil {
			after += c.Account.Lamports
		}
	}
	return before == after+fee, nil
}

func (r *Runtime) commit(ctx context.Context, tx *solana.Transaction, res *Result, changes []domain.AccountChange, fee uint64) error {
	now := r.now()

	r.mu.Lock()
	slot := r.slot + 1
	if err := r.store.ApplyChanges(ctx, slot, changes); err != nil {
		r.mu.Unlock()
		return errors.Wrap(err, "commit account changes")
	}
	r.slot = slot
	r.pushBlockhash(slotHash(slot, res.Signature))

	for i := range res.Events {
		e := &res.Events[i]
		e.EventID = uuid.NewString()
		e.Signature = res.Signature.String()
		e.Slot = slot
		e.Index = i
		e.Timestamp = now.UnixMilli()
	}

	rec := &TxRecord{
		Signature: res.Signature,
		Slot:      slot,
		BlockTime: now.Unix(),
		Fee:       fee,
		Logs:      res.Logs,
		Accounts:  append([]solana.PublicKey(nil), tx.Message.Accounts...),
		Events:    res.Events,
	}
	r.records[rec.Signature] = rec
	for _, a := range rec.Accounts {
		r.byAddress[a] = append(r.byAddress[a], rec.Signature)
	}
	res.Slot = slot

	// Take the notify lock before releasing state so listeners observe
	// commits in slot order.
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	r.metrics.RecordCommit(slot, now.Unix())
	r.log.Debug("transaction committed",
		zap.Stringer("signature", res.Signature),
		zap.Uint64("slot", slot),
		zap.Int("changes", len(changes)),
	)

	if len(res.Events) > 0 {
		for _, e := range res.Events {
			r.metrics.RecordEvent(string(e.Kind))
		}
		if r.events != nil {
			events := make([]*domain.NftEvent, len(res.Events))
			for i := range res.Events {
				events[i] = &res.Events[i]
			}
			if err := r.events.InsertBulk(ctx, events); err != nil {
				r.metrics.EventStoreErrors.Inc()
				r.log.Warn("store events", zap.Stringer("signature", res.Signature), zap.Error(err))
			}
		}
	}

	for _, l := range r.listeners {
		l(rec)
	}
	return nil
}

// Subscribe registers l for committed transactions. The returned func
// unregisters it. Listeners run synchronously and must not block.
func (r *Runtime) Subscribe(l Listener) (cancel func()) {
	r.notifyMu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.notifyMu.Unlock()

	return func() {
		r.notifyMu.Lock()
		delete(r.listeners, id)
		r.notifyMu.Unlock()
	}
}

func (r *Runtime) processed(sig solana.Signature) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[sig]
	return ok
}

// slotHash derives the blockhash produced by a slot.
func slotHash(slot uint64, sig solana.Signature) solana.Hash {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], slot)

	h := sha256.New()
	h.Write([]byte("nftlab-blockhash"))
	h.Write(b[:])
	h.Write(sig[:])

	var out solana.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// pushBlockhash must be called with mu held.
func (r *Runtime) pushBlockhash(h solana.Hash) {
	r.blockhashes = append(r.blockhashes, h)
	r.validHashes[h] = r.slot
	if len(r.blockhashes) > r.cfg.MaxRecentBlockhashes {
		delete(r.validHashes, r.blockhashes[0])
		r.blockhashes = r.blockhashes[1:]
	}
}

// LatestBlockhash returns the newest blockhash and the last slot at which a
// transaction referencing it is still accepted.
func (r *Runtime) LatestBlockhash() (solana.Hash, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.blockhashes[len(r.blockhashes)-1], r.slot + uint64(r.cfg.MaxRecentBlockhashes)
}

// IsBlockhashValid reports whether h is among the recent blockhashes.
func (r *Runtime) IsBlockhashValid(h solana.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.validHashes[h]
	return ok
}

// Slot returns the last committed slot.
func (r *Runtime) Slot() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slot
}

// Transaction returns the record of a committed transaction.
func (r *Runtime) Transaction(sig solana.Signature) (*TxRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[sig]
	return rec, ok
}

// SignaturesForAddress returns up to limit signatures of committed
// transactions that referenced addr, newest first.
func (r *Runtime) SignaturesForAddress(addr solana.PublicKey, limit int) []*TxRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sigs := r.byAddress[addr]
	out := make([]*TxRecord, 0, len(sigs))
	for i := len(sigs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r.records[sigs[i]])
	}
	return out
}

// Account reads committed state. Returns nil if the account does not exist.
func (r *Runtime) Account(ctx context.Context, addr solana.PublicKey) (*domain.Account, error) {
	acct, err := r.store.GetAccount(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load account %s", addr)
	}
	return acct, nil
}

// FeeFor returns the fee charged for a transaction with n signatures.
func (r *Runtime) FeeFor(n int) uint64 {
	return r.cfg.FeePerSignature * uint64(n)
}
