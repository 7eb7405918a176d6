package token

import "solana-nft-lab/internal/runtime"

// Token program errors.
var (
	ErrNotRentExempt             = runtime.NewCustomError(0, "NotRentExempt", "lamport balance below rent-exempt threshold")
	ErrInsufficientFunds         = runtime.NewCustomError(1, "InsufficientFunds", "insufficient funds")
	ErrInvalidMint               = runtime.NewCustomError(2, "InvalidMint", "invalid mint")
	ErrMintMismatch              = runtime.NewCustomError(3, "MintMismatch", "account not associated with this mint")
	ErrOwnerMismatch             = runtime.NewCustomError(4, "OwnerMismatch", "owner does not match")
	ErrFixedSupply               = runtime.NewCustomError(5, "FixedSupply", "fixed supply")
	ErrAlreadyInUse              = runtime.NewCustomError(6, "AlreadyInUse", "already in use")
	ErrUninitializedState        = runtime.NewCustomError(9, "UninitializedState", "state is uninitialized")
	ErrInvalidInstruction        = runtime.NewCustomError(12, "InvalidInstruction", "invalid instruction")
	ErrOverflow                  = runtime.NewCustomError(14, "Overflow", "operation overflowed")
	ErrAuthorityTypeNotSupported = runtime.NewCustomError(15, "AuthorityTypeNotSupported", "account does not support specified authority type")
	ErrMintCannotFreeze          = runtime.NewCustomError(16, "MintCannotFreeze", "this token mint cannot freeze accounts")
	ErrAccountFrozen             = runtime.NewCustomError(17, "AccountFrozen", "account is frozen")
)
