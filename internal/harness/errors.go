package harness

import (
	"fmt"

	"solana-nft-lab/internal/programs/nft"
	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Error is a transaction the cluster rejected. It unwraps to the matching
// *runtime.ProgramError, so errors.Is(err, nft.ErrSupplyExceeded) works on
// the client side.
type Error struct {
	Op        string
	Signature solana.Signature
	Tx        *solana.TransactionError
	Program   *runtime.ProgramError
}

func newError(op string, sig solana.Signature, txErr *solana.TransactionError) *Error {
	return &Error{Op: op, Signature: sig, Tx: txErr, Program: programError(txErr)}
}

// programError maps a wire error back to a lifecycle error when the code is
// known, or to a builtin instruction error.
func programError(txErr *solana.TransactionError) *runtime.ProgramError {
	if txErr == nil || txErr.Instruction == nil {
		return nil
	}
	if code, ok := txErr.CustomCode(); ok {
		if e, ok := nft.ErrorByCode(code); ok {
			return e
		}
		return runtime.NewCustomError(code, "", "")
	}
	return runtime.NewError(txErr.Instruction.Kind)
}

func (e *Error) Error() string {
	if e.Program != nil && e.Program.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Program.Name, e.Tx)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Tx)
}

func (e *Error) Unwrap() error {
	if e.Program != nil {
		return e.Program
	}
	return e.Tx
}
