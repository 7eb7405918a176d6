// Package runtime executes signed transactions against the ledger: it checks
// signatures and blockhashes, charges fees, locks accounts, dispatches
// instructions to builtin programs and commits the resulting account changes.
package runtime

import (
	"fmt"

	"solana-nft-lab/internal/solana"
)

// Program is a builtin on-chain program.
type Program interface {
	// ID is the program address.
	ID() solana.PublicKey
	// Name is a short label used in logs and metrics.
	Name() string
	// Process executes one instruction. Returning a *ProgramError fails the
	// transaction; any other error is treated as an internal failure.
	Process(ic *InvokeContext, data []byte) error
}

// ProgramError is an instruction failure reported back to the client.
type ProgramError struct {
	Kind string // one of the solana.IxErr* kinds
	Code uint32 // set when Kind is solana.IxErrCustom
	Name string // symbolic name of a custom error
	Msg  string
}

// NewError returns a builtin instruction error.
func NewError(kind string) *ProgramError {
	return &ProgramError{Kind: kind}
}

// NewCustomError returns a program-defined error.
func NewCustomError(code uint32, name, msg string) *ProgramError {
	return &ProgramError{Kind: solana.IxErrCustom, Code: code, Name: name, Msg: msg}
}

func (e *ProgramError) Error() string {
	if e.Kind == solana.IxErrCustom {
		return fmt.Sprintf("custom program error: %#x", e.Code)
	}
	return e.Kind
}

// Is matches on kind and code so wrapped copies compare equal.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Kind == e.Kind && t.Code == e.Code
}

// TransactionError pins the failure to instruction index.
func (e *ProgramError) TransactionError(index int) *solana.TransactionError {
	if e.Kind == solana.IxErrCustom {
		return solana.NewCustomError(index, e.Code)
	}
	return solana.NewInstructionError(index, e.Kind)
}

// Builtin instruction errors.
var (
	ErrInvalidArgument          = NewError(solana.IxErrInvalidArgument)
	ErrInvalidInstructionData   = NewError(solana.IxErrInvalidInstructionData)
	ErrInvalidAccountData       = NewError(solana.IxErrInvalidAccountData)
	ErrInsufficientFunds        = NewError(solana.IxErrInsufficientFunds)
	ErrMissingRequiredSignature = NewError(solana.IxErrMissingRequiredSignature)
	ErrIncorrectProgramID       = NewError(solana.IxErrIncorrectProgramID)
	ErrNotEnoughAccountKeys     = NewError(solana.IxErrNotEnoughAccountKeys)
	ErrReadonlyDataModified     = NewError(solana.IxErrReadonlyDataModified)
	ErrReadonlyLamportChange    = NewError(solana.IxErrReadonlyLamportChange)
	ErrExternalDataModified     = NewError(solana.IxErrExternalDataModified)
	ErrExternalLamportSpend     = NewError(solana.IxErrExternalLamportSpend)
	ErrModifiedProgramID        = NewError(solana.IxErrModifiedProgramID)
	ErrUnsupportedProgramID     = NewError(solana.IxErrUnsupportedProgramID)
	ErrInvalidSeeds             = NewError(solana.IxErrInvalidSeeds)
	ErrPrivilegeEscalation      = NewError(solana.IxErrPrivilegeEscalation)
	ErrUninitializedAccount     = NewError(solana.IxErrUninitializedAccount)
	ErrMissingAccount           = NewError(solana.IxErrMissingAccount)
	ErrCallDepth                = NewError(solana.IxErrCallDepth)
	ErrUnbalancedInstruction    = NewError(solana.IxErrUnbalancedInstruction)
	ErrIllegalOwner             = NewError(solana.IxErrIllegalOwner)
)
