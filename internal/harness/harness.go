// Package harness drives the NFT lifecycle program over RPC: it funds
// wallets, sends and confirms lifecycle instructions and decodes the
// resulting mint, holder, metadata and edition accounts.
package harness

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-lab/internal/solana"
)

// Defaults for confirmation.
const (
	DefaultConfirmTimeout = 30 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
)

// ErrConfirmTimeout is returned when a sent transaction is not confirmed in time.
var ErrConfirmTimeout = errors.New("confirmation timed out")

// Harness sends lifecycle transactions to one cluster.
type Harness struct {
	rpc solana.RPCClient
	ws  solana.WSClient
	log *zap.Logger

	commitment     string
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

// Option configures a Harness.
type Option func(*Harness)

// WithSubscriptions confirms transactions through signature subscriptions
// instead of polling signature statuses.
func WithSubscriptions(ws solana.WSClient) Option {
	return func(h *Harness) { h.ws = ws }
}

// WithConfirmTimeout bounds the wait for each confirmation.
func WithConfirmTimeout(d time.Duration) Option {
	return func(h *Harness) { h.confirmTimeout = d }
}

// WithPollInterval sets the signature status polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(h *Harness) { h.pollInterval = d }
}

// WithCommitment sets the level a polled status must reach.
func WithCommitment(commitment string) Option {
	return func(h *Harness) { h.commitment = commitment }
}

// New creates a harness over rpc.
func New(rpc solana.RPCClient, log *zap.Logger, opts ...Option) *Harness {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Harness{
		rpc:            rpc,
		log:            log.With(zap.String("component", "harness")),
		commitment:     solana.CommitmentConfirmed,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RPC returns the underlying client.
func (h *Harness) RPC() solana.RPCClient { return h.rpc }

// Wallet generates a keypair and funds it with lamports from the faucet.
func (h *Harness) Wallet(ctx context.Context, lamports uint64) (*solana.Keypair, error) {
	kp, err := solana.NewKeypair()
	if err != nil {
		return nil, errors.Wrap(err, "generate wallet")
	}
	if err := h.Fund(ctx, kp.PublicKey, lamports); err != nil {
		return nil, err
	}
	return kp, nil
}

// Fund airdrops lamports to addr and waits for confirmation.
func (h *Harness) Fund(ctx context.Context, addr solana.PublicKey, lamports uint64) error {
	sig, err := h.rpc.RequestAirdrop(ctx, addr, lamports)
	if err != nil {
		return errors.Wrapf(err, "airdrop to %s", addr)
	}
	if err := h.confirm(ctx, sig, nil); err != nil {
		return errors.Wrapf(err, "confirm airdrop to %s", addr)
	}
	h.log.Debug("funded", zap.Stringer("address", addr), zap.Uint64("lamports", lamports))
	return nil
}

// Send signs ixs with payer and signers, submits them and waits for
// confirmation. A transaction rejected by the cluster yields an *Error.
func (h *Harness) Send(ctx context.Context, op string, payer *solana.Keypair, ixs []solana.Instruction, signers ...*solana.Keypair) (solana.Signature, error) {
	hash, err := h.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, errors.Wrapf(err, "%s: latest blockhash", op)
	}

	tx := solana.NewTransaction(payer.PublicKey, ixs...)
	tx.SetBlockhash(hash)
	if err := tx.Sign(append([]*solana.Keypair{payer}, signers...)...); err != nil {
		return solana.Signature{}, errors.Wrapf(err, "%s: sign", op)
	}
	sig := tx.Signature()

	var notes <-chan solana.SignatureNotification
	if h.ws != nil {
		notes, err = h.ws.SubscribeSignature(ctx, sig)
		if err != nil {
			h.log.Warn("signature subscription failed, polling instead", zap.Error(err))
			notes = nil
		}
	}

	if _, err := h.rpc.SendTransaction(ctx, tx); err != nil {
		var txErr *solana.TransactionError
		if errors.As(err, &txErr) {
			return sig, newError(op, sig, txErr)
		}
		return sig, errors.Wrapf(err, "%s: send", op)
	}

	if err := h.confirm(ctx, sig, notes); err != nil {
		var txErr *solana.TransactionError
		if errors.As(err, &txErr) {
			return sig, newError(op, sig, txErr)
		}
		return sig, errors.Wrapf(err, "%s: confirm %s", op, sig)
	}

	h.log.Debug("confirmed", zap.String("op", op), zap.Stringer("signature", sig))
	return sig, nil
}

// confirm waits on notes if set, and polls signature statuses otherwise.
func (h *Harness) confirm(ctx context.Context, sig solana.Signature, notes <-chan solana.SignatureNotification) error {
	ctx, cancel := context.WithTimeout(ctx, h.confirmTimeout)
	defer cancel()

	if notes != nil {
		select {
		case n, ok := <-notes:
			if ok {
				if n.Err != nil {
					return n.Err
				}
				return nil
			}
			// Subscription dropped: fall back to polling.
		case <-ctx.Done():
			return errors.Wrapf(ErrConfirmTimeout, "after %s", h.confirmTimeout)
		}
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	for {
		statuses, err := h.rpc.GetSignatureStatuses(ctx, sig)
		if err != nil && ctx.Err() == nil {
			return errors.Wrap(err, "signature status")
		}
		if len(statuses) == 1 && statuses[0] != nil && reached(statuses[0].ConfirmationStatus, h.commitment) {
			if statuses[0].Err != nil {
				return statuses[0].Err
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ErrConfirmTimeout, "after %s", h.confirmTimeout)
		case <-ticker.C:
		}
	}
}

var commitmentRank = map[string]int{
	solana.CommitmentProcessed: 1,
	solana.CommitmentConfirmed: 2,
	solana.CommitmentFinalized: 3,
}

func reached(status, want string) bool {
	return commitmentRank[status] >= commitmentRank[want]
}
