package nft

import (
	"solana-nft-lab/internal/runtime"
)

// Lifecycle errors, numbered from the Anchor user error offset.
var (
	ErrAlreadyInitialized  = runtime.NewCustomError(6000, "AlreadyInitialized", "Minter account already exists")
	ErrAlreadyExists       = runtime.NewCustomError(6001, "AlreadyExists", "Holder account already exists")
	ErrUnauthorized        = runtime.NewCustomError(6002, "Unauthorized", "Signer is not the required authority")
	ErrSupplyExceeded      = runtime.NewCustomError(6003, "SupplyExceeded", "Minter already has its single unit")
	ErrInsufficientBalance = runtime.NewCustomError(6004, "InsufficientBalance", "Sender holds no unit")
	ErrDestinationOccupied = runtime.NewCustomError(6005, "DestinationOccupied", "Recipient already holds a unit")
	ErrAccountNotFound     = runtime.NewCustomError(6006, "AccountNotFound", "Required account does not exist")
	ErrMintMismatch        = runtime.NewCustomError(6007, "MintMismatch", "Holder account belongs to another mint")
)

// Framework errors raised before an instruction handler runs.
var (
	ErrInstructionMissing           = runtime.NewCustomError(100, "InstructionMissing", "8 byte instruction identifier not provided")
	ErrInstructionFallbackNotFound  = runtime.NewCustomError(101, "InstructionFallbackNotFound", "Fallback functions are not supported")
	ErrInstructionDidNotDeserialize = runtime.NewCustomError(102, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction")
	ErrAccountNotEnoughKeys         = runtime.NewCustomError(3005, "AccountNotEnoughKeys", "Not enough account keys given to the instruction")
	ErrAccountNotMutable            = runtime.NewCustomError(3006, "AccountNotMutable", "The given account is not mutable")
	ErrInvalidProgramID             = runtime.NewCustomError(3008, "InvalidProgramId", "Program ID was not as expected")
	ErrAccountNotSigner             = runtime.NewCustomError(3010, "AccountNotSigner", "The given account did not sign")
	ErrAccountSysvarMismatch        = runtime.NewCustomError(3015, "AccountSysvarMismatch", "The given public key does not match the required sysvar")
)

var programErrors = []*runtime.ProgramError{
	ErrAlreadyInitialized, ErrAlreadyExists, ErrUnauthorized, ErrSupplyExceeded,
	ErrInsufficientBalance, ErrDestinationOccupied, ErrAccountNotFound, ErrMintMismatch,
	ErrInstructionMissing, ErrInstructionFallbackNotFound, ErrInstructionDidNotDeserialize,
	ErrAccountNotEnoughKeys, ErrAccountNotMutable, ErrInvalidProgramID, ErrAccountNotSigner,
	ErrAccountSysvarMismatch,
}

// ownError returns err as one of this program's errors, or nil if it came
// from elsewhere, for example a failed cross-program call.
func ownError(err error) *runtime.ProgramError {
	for _, e := range programErrors {
		if err == error(e) {
			return e
		}
	}
	return nil
}

// ErrorByCode returns the lifecycle or framework error with code.
func ErrorByCode(code uint32) (*runtime.ProgramError, bool) {
	for _, e := range programErrors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}
