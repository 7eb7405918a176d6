package solana

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Transaction level error kinds, as reported by the cluster.
const (
	TxErrAccountNotFound         = "AccountNotFound"
	TxErrBlockhashNotFound       = "BlockhashNotFound"
	TxErrAlreadyProcessed        = "AlreadyProcessed"
	TxErrInsufficientFundsForFee = "InsufficientFundsForFee"
	TxErrSignatureFailure        = "SignatureFailure"
	TxErrInvalidAccountIndex     = "InvalidAccountIndex"
	TxErrInstructionError        = "InstructionError"
)

// Instruction level error kinds.
const (
	IxErrCustom                   = "Custom"
	IxErrInvalidArgument          = "InvalidArgument"
	IxErrInvalidInstructionData   = "InvalidInstructionData"
	IxErrInvalidAccountData       = "InvalidAccountData"
	IxErrInsufficientFunds        = "InsufficientFunds"
	IxErrMissingRequiredSignature = "MissingRequiredSignature"
	IxErrAccountAlreadyInUse      = "AccountAlreadyInUse"
	IxErrIncorrectProgramID       = "IncorrectProgramId"
	IxErrNotEnoughAccountKeys     = "NotEnoughAccountKeys"
	IxErrReadonlyDataModified     = "ReadonlyDataModified"
	IxErrExternalDataModified     = "ExternalAccountDataModified"
	IxErrUnsupportedProgramID     = "UnsupportedProgramId"
	IxErrInvalidSeeds             = "InvalidSeeds"
	IxErrPrivilegeEscalation      = "PrivilegeEscalation"
	IxErrExternalLamportSpend     = "ExternalAccountLamportSpend"
	IxErrReadonlyLamportChange    = "ReadonlyLamportChange"
	IxErrModifiedProgramID        = "ModifiedProgramId"
	IxErrUnbalancedInstruction    = "UnbalancedInstruction"
	IxErrUninitializedAccount     = "UninitializedAccount"
	IxErrMissingAccount           = "MissingAccount"
	IxErrCallDepth                = "CallDepth"
	IxErrIllegalOwner             = "IllegalOwner"
)

// TransactionError is the reason a cluster rejected a transaction.
type TransactionError struct {
	Kind        string
	Instruction *InstructionError
}

// InstructionError pins a failure to one instruction of the transaction.
type InstructionError struct {
	Index  int
	Kind   string
	Custom uint32
}

// NewTransactionError returns a transaction level error.
func NewTransactionError(kind string) *TransactionError {
	return &TransactionError{Kind: kind}
}

// NewInstructionError returns an error for instruction index.
func NewInstructionError(index int, kind string) *TransactionError {
	return &TransactionError{
		Kind:        TxErrInstructionError,
		Instruction: &InstructionError{Index: index, Kind: kind},
	}
}

// NewCustomError returns a program-defined error for instruction index.
func NewCustomError(index int, code uint32) *TransactionError {
	return &TransactionError{
		Kind:        TxErrInstructionError,
		Instruction: &InstructionError{Index: index, Kind: IxErrCustom, Custom: code},
	}
}

func (e *TransactionError) Error() string {
	if e.Instruction == nil {
		return e.Kind
	}
	if e.Instruction.Kind == IxErrCustom {
		return fmt.Sprintf("Error processing Instruction %d: custom program error: %#x",
			e.Instruction.Index, e.Instruction.Custom)
	}
	return fmt.Sprintf("Error processing Instruction %d: %s", e.Instruction.Index, e.Instruction.Kind)
}

// CustomCode returns the program error code, if this is a custom error.
func (e *TransactionError) CustomCode() (uint32, bool) {
	if e == nil || e.Instruction == nil || e.Instruction.Kind != IxErrCustom {
		return 0, false
	}
	return e.Instruction.Custom, true
}

// MarshalJSON encodes the error the way the JSON-RPC API does, e.g.
// "BlockhashNotFound" or {"InstructionError":[0,{"Custom":6000}]}.
func (e TransactionError) MarshalJSON() ([]byte, error) {
	if e.Instruction == nil {
		return json.Marshal(e.Kind)
	}

	var detail interface{} = e.Instruction.Kind
	if e.Instruction.Kind == IxErrCustom {
		detail = map[string]uint32{IxErrCustom: e.Instruction.Custom}
	}
	return json.Marshal(map[string][]interface{}{
		TxErrInstructionError: {e.Instruction.Index, detail},
	})
}

func (e *TransactionError) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		*e = TransactionError{Kind: kind}
		return nil
	}

	var obj map[string][]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "decode transaction error")
	}
	parts, ok := obj[TxErrInstructionError]
	if !ok {
		for k := range obj {
			*e = TransactionError{Kind: k}
			return nil
		}
		return errors.New("empty transaction error")
	}
	if len(parts) != 2 {
		return errors.Errorf("malformed instruction error: %s", data)
	}

	ie := &InstructionError{}
	if err := json.Unmarshal(parts[0], &ie.Index); err != nil {
		return errors.Wrap(err, "decode instruction index")
	}
	if err := json.Unmarshal(parts[1], &ie.Kind); err != nil {
		var custom map[string]uint32
		if err := json.Unmarshal(parts[1], &custom); err != nil {
			return errors.Wrap(err, "decode instruction error")
		}
		code, ok := custom[IxErrCustom]
		if !ok {
			return errors.Errorf("unknown instruction error: %s", parts[1])
		}
		ie.Kind = IxErrCustom
		ie.Custom = code
	}

	*e = TransactionError{Kind: TxErrInstructionError, Instruction: ie}
	return nil
}
