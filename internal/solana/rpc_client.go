package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultCommitment  = CommitmentConfirmed
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	commitment  string
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
	observe     func(method string, err error, d time.Duration)
}

var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithCommitment sets the commitment used for reads and preflight.
func WithCommitment(commitment string) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = commitment
	}
}

// WithObserver registers a callback invoked after every call.
func WithObserver(fn func(method string, err error, d time.Duration)) ClientOption {
	return func(c *HTTPClient) {
		c.observe = fn
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		commitment:  DefaultCommitment,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// clientRequest is the outgoing form of RPCRequest.
type clientRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// errRetryable marks transport failures worth another attempt.
type errRetryable struct{ error }

func (e errRetryable) Unwrap() error { return e.error }

func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	if c.observe != nil {
		start := time.Now()
		defer func() { c.observe(method, err, time.Since(start)) }()
	}

	body, err := json.Marshal(clientRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		lastErr = c.attempt(ctx, body, result)
		var retry errRetryable
		if !errors.As(lastErr, &retry) {
			return lastErr
		}
	}
	return errors.Wrapf(lastErr, "%s: max retries exceeded", method)
}

// attempt performs one round trip. RPC errors are final; transport errors,
// 429 and non-200 statuses are retryable.
func (c *HTTPClient) attempt(ctx context.Context, body []byte, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errRetryable{errors.Wrap(err, "http request")}
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return errRetryable{errors.Wrap(err, "read response")}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errRetryable{errors.New("rate limited (429)")}
	case resp.StatusCode != http.StatusOK:
		return errRetryable{errors.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)}
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return errRetryable{errors.Wrap(err, "unmarshal response")}
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errors.Wrap(err, "unmarshal result")
		}
	}
	return nil
}

func (c *HTTPClient) commitmentConfig() map[string]interface{} {
	return map[string]interface{}{"commitment": c.commitment}
}

// GetAccountInfo retrieves account info by address.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, address PublicKey) (*AccountInfo, error) {
	params := []interface{}{
		address.String(),
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}

	var result AccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, nil
	}
	return result.Value.AccountInfo()
}

// GetBalance returns the lamports held by address.
func (c *HTTPClient) GetBalance(ctx context.Context, address PublicKey) (uint64, error) {
	var result BalanceResult
	if err := c.call(ctx, "getBalance", []interface{}{address.String(), c.commitmentConfig()}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetLatestBlockhash returns the most recent blockhash.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (Hash, error) {
	var result LatestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", []interface{}{c.commitmentConfig()}, &result); err != nil {
		return Hash{}, err
	}
	return ParseHash(result.Value.Blockhash)
}

// RequestAirdrop asks the faucet to fund address.
func (c *HTTPClient) RequestAirdrop(ctx context.Context, address PublicKey, lamports uint64) (Signature, error) {
	var result string
	if err := c.call(ctx, "requestAirdrop", []interface{}{address.String(), lamports}, &result); err != nil {
		return Signature{}, err
	}
	return ParseSignature(result)
}

// SendTransaction submits a signed transaction with preflight checks.
// Preflight rejections are returned as *TransactionError.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx Transaction) (Signature, error) {
	params := []interface{}{
		tx.MarshalBase64(),
		map[string]interface{}{
			"encoding":            "base64",
			"preflightCommitment": c.commitment,
		},
	}

	var result string
	err := c.call(ctx, "sendTransaction", params, &result)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == RPCCodeSendTxPreflight && len(rpcErr.Data) > 0 {
			var failure PreflightFailure
			if json.Unmarshal(rpcErr.Data, &failure) == nil && failure.Err != nil {
				return tx.Signature(), failure.Err
			}
		}
		return Signature{}, err
	}
	return ParseSignature(result)
}

// SimulateTransaction executes tx without committing it and returns the
// error it would fail with, if any, and its logs.
func (c *HTTPClient) SimulateTransaction(ctx context.Context, tx Transaction) (*TransactionError, []string, error) {
	params := []interface{}{
		tx.MarshalBase64(),
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}

	var result SimulateResult
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return nil, nil, err
	}
	return result.Value.Err, result.Value.Logs, nil
}

// GetMinimumBalanceForRentExemption returns the balance an account of
// dataLen bytes needs to be rent exempt.
func (c *HTTPClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataLen int) (uint64, error) {
	var result uint64
	if err := c.call(ctx, "getMinimumBalanceForRentExemption", []interface{}{dataLen}, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetSignatureStatuses returns the status of each signature, nil if unknown.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, sigs ...Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, s := range sigs {
		encoded[i] = s.String()
	}

	var result SignatureStatusesResult
	params := []interface{}{encoded, map[string]interface{}{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	statuses := make([]*SignatureStatus, len(result.Value))
	for i, v := range result.Value {
		if v == nil {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			Err:                v.Err,
			ConfirmationStatus: v.ConfirmationStatus,
		}
	}
	return statuses, nil
}

// GetTransaction retrieves a processed transaction by signature.
func (c *HTTPClient) GetTransaction(ctx context.Context, sig Signature) (*TransactionResult, error) {
	params := []interface{}{
		sig.String(),
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     c.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *TransactionResultValue
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	tx := &TransactionResult{
		Slot:      result.Slot,
		Signature: sig,
		BlockTime: result.BlockTime,
	}
	if result.Meta != nil {
		tx.Err = result.Meta.Err
		tx.Fee = result.Meta.Fee
		tx.LogMessages = result.Meta.LogMessages
	}
	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.AccountKeys = result.Transaction.Message.AccountKeys
	}
	return tx, nil
}

// GetSignaturesForAddress retrieves signatures for an address with pagination.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address PublicKey, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := c.commitmentConfig()
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	var result []SignatureInfoValue
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{address.String(), config}, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, 0, len(result))
	for _, r := range result {
		sig, err := ParseSignature(r.Signature)
		if err != nil {
			return nil, errors.Wrapf(err, "signature entry %s", strconv.Quote(r.Signature))
		}
		sigs = append(sigs, SignatureInfo{Signature: sig, Slot: r.Slot, BlockTime: r.BlockTime, Err: r.Err})
	}
	return sigs, nil
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.call(ctx, "getSlot", []interface{}{c.commitmentConfig()}, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetHealth returns nil when the node reports "ok".
func (c *HTTPClient) GetHealth(ctx context.Context) error {
	var result string
	if err := c.call(ctx, "getHealth", nil, &result); err != nil {
		return err
	}
	if result != "ok" {
		return errors.Errorf("node unhealthy: %s", result)
	}
	return nil
}
