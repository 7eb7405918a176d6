package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to program logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// SubscribeSignature delivers exactly one notification once the
	// transaction is processed, then closes the channel.
	SubscribeSignature(ctx context.Context, sig Signature) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses.
	Mentions []PublicKey
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature Signature
	Slot      uint64
	Logs      []string
	Err       *TransactionError
}

// SignatureNotification reports the outcome of a transaction.
type SignatureNotification struct {
	Slot uint64
	Err  *TransactionError
}

// Wire shapes of subscription messages, shared with the server side.

// WSNotification is a subscription push message.
type WSNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *WSNotificationParams `json:"params"`
}

// WSNotificationParams carries the subscription id and payload.
type WSNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       WSNotificationResult `json:"result"`
}

// WSNotificationResult wraps a payload with its slot context.
type WSNotificationResult struct {
	Context *RPCContext `json:"context"`
	Value   WSValue     `json:"value"`
}

// WSValue is the union of logs and signature notification payloads.
type WSValue struct {
	Signature string            `json:"signature,omitempty"`
	Logs      []string          `json:"logs,omitempty"`
	Err       *TransactionError `json:"err"`
}
