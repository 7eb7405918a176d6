package solana

import "context"

// RPCClient is the subset of the Solana JSON-RPC API used to drive programs
// and read back their accounts.
type RPCClient interface {
	// GetAccountInfo returns nil when the account does not exist.
	GetAccountInfo(ctx context.Context, address PublicKey) (*AccountInfo, error)

	// GetBalance returns the lamport balance of an address.
	GetBalance(ctx context.Context, address PublicKey) (uint64, error)

	// GetLatestBlockhash returns a blockhash new transactions may reference.
	GetLatestBlockhash(ctx context.Context) (Hash, error)

	// RequestAirdrop funds an address from the cluster faucet.
	RequestAirdrop(ctx context.Context, address PublicKey, lamports uint64) (Signature, error)

	// SendTransaction submits a signed transaction. A transaction rejected
	// by the cluster yields a *TransactionError.
	SendTransaction(ctx context.Context, tx Transaction) (Signature, error)

	// GetSignatureStatuses returns one entry per signature, nil for unknown ones.
	GetSignatureStatuses(ctx context.Context, sigs ...Signature) ([]*SignatureStatus, error)

	// GetTransaction returns nil when the transaction is unknown.
	GetTransaction(ctx context.Context, sig Signature) (*TransactionResult, error)

	// GetSignaturesForAddress lists transactions referencing an address, newest first.
	GetSignaturesForAddress(ctx context.Context, address PublicKey, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetSlot returns the current slot.
	GetSlot(ctx context.Context) (uint64, error)
}

// AccountInfo is the state of an account.
type AccountInfo struct {
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// Commitment levels reported in signature statuses.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureStatus reports where a transaction landed.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                *TransactionError
	ConfirmationStatus string
}

// TransactionResult is a processed transaction with its logs.
type TransactionResult struct {
	Slot        uint64
	Signature   Signature
	BlockTime   *int64
	Err         *TransactionError
	Fee         uint64
	LogMessages []string
	AccountKeys []PublicKey
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature Signature
	Slot      uint64
	BlockTime *int64
	Err       *TransactionError
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}
