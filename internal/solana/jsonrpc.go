package solana

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// JSON-RPC 2.0 error codes used by Solana nodes.
const (
	RPCCodeParseError        = -32700
	RPCCodeInvalidRequest    = -32600
	RPCCodeMethodNotFound    = -32601
	RPCCodeInvalidParams     = -32602
	RPCCodeInternalError     = -32603
	RPCCodeSendTxPreflight   = -32002
	RPCCodeTransactionFailed = -32003
)

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id,omitempty"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// PreflightFailure is the data payload of a rejected sendTransaction.
type PreflightFailure struct {
	Err  *TransactionError `json:"err"`
	Logs []string          `json:"logs"`
}

// RPCContext is the context wrapper of slot-aware results.
type RPCContext struct {
	Slot uint64 `json:"slot"`
}

// AccountInfoValue is the wire form of an account.
type AccountInfoValue struct {
	Lamports   uint64    `json:"lamports"`
	Owner      PublicKey `json:"owner"`
	Data       [2]string `json:"data"` // [payload, encoding]
	Executable bool      `json:"executable"`
	RentEpoch  uint64    `json:"rentEpoch"`
	Space      int       `json:"space"`
}

// NewAccountInfoValue encodes an account for the wire.
func NewAccountInfoValue(info *AccountInfo) *AccountInfoValue {
	return &AccountInfoValue{
		Lamports:   info.Lamports,
		Owner:      info.Owner,
		Data:       [2]string{base64.StdEncoding.EncodeToString(info.Data), "base64"},
		Executable: info.Executable,
		RentEpoch:  info.RentEpoch,
		Space:      len(info.Data),
	}
}

// AccountInfo decodes the wire form.
func (v *AccountInfoValue) AccountInfo() (*AccountInfo, error) {
	if v.Data[1] != "" && v.Data[1] != "base64" {
		return nil, errors.Errorf("unsupported account encoding %q", v.Data[1])
	}
	data, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return nil, errors.Wrap(err, "decode account data")
	}
	return &AccountInfo{
		Lamports:   v.Lamports,
		Owner:      v.Owner,
		Data:       data,
		Executable: v.Executable,
		RentEpoch:  v.RentEpoch,
	}, nil
}

// AccountInfoResult is the getAccountInfo result.
type AccountInfoResult struct {
	Context RPCContext        `json:"context"`
	Value   *AccountInfoValue `json:"value"`
}

// BalanceResult is the getBalance result.
type BalanceResult struct {
	Context RPCContext `json:"context"`
	Value   uint64     `json:"value"`
}

// LatestBlockhashResult is the getLatestBlockhash result.
type LatestBlockhashResult struct {
	Context RPCContext `json:"context"`
	Value   struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// SignatureStatusValue is one entry of getSignatureStatuses.
type SignatureStatusValue struct {
	Slot               uint64            `json:"slot"`
	Confirmations      *uint64           `json:"confirmations"`
	Err                *TransactionError `json:"err"`
	ConfirmationStatus string            `json:"confirmationStatus"`
}

// SignatureStatusesResult is the getSignatureStatuses result.
type SignatureStatusesResult struct {
	Context RPCContext              `json:"context"`
	Value   []*SignatureStatusValue `json:"value"`
}

// TransactionResultValue is the getTransaction result.
type TransactionResultValue struct {
	Slot        uint64               `json:"slot"`
	BlockTime   *int64               `json:"blockTime"`
	Meta        *TransactionMeta     `json:"meta"`
	Transaction *TransactionEnvelope `json:"transaction"`
}

// TransactionMeta is the execution status of a processed transaction.
type TransactionMeta struct {
	Err         *TransactionError `json:"err"`
	Fee         uint64            `json:"fee"`
	LogMessages []string          `json:"logMessages"`
}

// TransactionEnvelope is the json encoding of a transaction.
type TransactionEnvelope struct {
	Signatures []string            `json:"signatures"`
	Message    *TransactionMessage `json:"message"`
}

// TransactionMessage lists the accounts a transaction referenced.
type TransactionMessage struct {
	AccountKeys     []PublicKey `json:"accountKeys"`
	RecentBlockhash string      `json:"recentBlockhash,omitempty"`
}

// SimulateResult is the simulateTransaction result.
type SimulateResult struct {
	Context RPCContext `json:"context"`
	Value   struct {
		Err  *TransactionError `json:"err"`
		Logs []string          `json:"logs"`
	} `json:"value"`
}

// SignatureInfoValue is one entry of getSignaturesForAddress.
type SignatureInfoValue struct {
	Signature string            `json:"signature"`
	Slot      uint64            `json:"slot"`
	BlockTime *int64            `json:"blockTime"`
	Err       *TransactionError `json:"err"`
}
