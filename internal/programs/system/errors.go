package system

import "solana-nft-lab/internal/runtime"

// System program errors.
var (
	ErrAccountAlreadyInUse        = runtime.NewCustomError(0, "AccountAlreadyInUse", "an account with the same address already exists")
	ErrResultWithNegativeLamports = runtime.NewCustomError(1, "ResultWithNegativeLamports", "account does not have enough SOL to perform the operation")
	ErrInvalidAccountDataLength   = runtime.NewCustomError(3, "InvalidAccountDataLength", "requested account data length exceeds the limit")
)
