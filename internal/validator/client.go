package validator

import (
	"context"

	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// Client calls a validator in process. It behaves like solana.HTTPClient
// against the validator's RPC server, without the transport.
type Client struct {
	v *Validator
}

var _ solana.RPCClient = (*Client)(nil)

// Client returns an in-process RPC client for v.
func (v *Validator) Client() *Client {
	return &Client{v: v}
}

func (c *Client) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*solana.AccountInfo, error) {
	acct, err := c.v.Runtime.Account(ctx, address)
	if err != nil || acct == nil {
		return nil, err
	}
	return acct.Info(), nil
}

func (c *Client) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	acct, err := c.v.Runtime.Account(ctx, address)
	if err != nil || acct == nil {
		return 0, err
	}
	return acct.Lamports, nil
}

func (c *Client) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	hash, _ := c.v.Runtime.LatestBlockhash()
	return hash, nil
}

func (c *Client) RequestAirdrop(ctx context.Context, address solana.PublicKey, lamports uint64) (solana.Signature, error) {
	return c.v.Airdrop(ctx, address, lamports)
}

// SendTransaction processes tx. A rejected transaction returns its
// signature together with the *solana.TransactionError.
func (c *Client) SendTransaction(ctx context.Context, tx solana.Transaction) (solana.Signature, error) {
	res, err := c.v.Runtime.Process(ctx, &tx)
	if err != nil {
		return solana.Signature{}, err
	}
	if res.Err != nil {
		return res.Signature, res.Err
	}
	return res.Signature, nil
}

func (c *Client) SimulateTransaction(ctx context.Context, tx solana.Transaction) (*solana.TransactionError, []string, error) {
	res, err := c.v.Runtime.Simulate(ctx, &tx)
	if err != nil {
		return nil, nil, err
	}
	return res.Err, res.Logs, nil
}

func (c *Client) GetMinimumBalanceForRentExemption(_ context.Context, dataLen int) (uint64, error) {
	return runtime.RentExemptMinimum(dataLen), nil
}

func (c *Client) GetSignatureStatuses(_ context.Context, sigs ...solana.Signature) ([]*solana.SignatureStatus, error) {
	out := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if rec, ok := c.v.Runtime.Transaction(sig); ok {
			out[i] = &solana.SignatureStatus{Slot: rec.Slot, ConfirmationStatus: solana.CommitmentFinalized}
		}
	}
	return out, nil
}

func (c *Client) GetTransaction(_ context.Context, sig solana.Signature) (*solana.TransactionResult, error) {
	rec, ok := c.v.Runtime.Transaction(sig)
	if !ok {
		return nil, nil
	}
	blockTime := rec.BlockTime
	return &solana.TransactionResult{
		Slot:        rec.Slot,
		Signature:   rec.Signature,
		BlockTime:   &blockTime,
		Fee:         rec.Fee,
		LogMessages: rec.Logs,
		AccountKeys: rec.Accounts,
	}, nil
}

// GetSignaturesForAddress honours opts.Limit only.
func (c *Client) GetSignaturesForAddress(_ context.Context, address solana.PublicKey, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	limit := 0
	if opts != nil {
		limit = opts.Limit
	}
	recs := c.v.Runtime.SignaturesForAddress(address, limit)
	out := make([]solana.SignatureInfo, len(recs))
	for i, rec := range recs {
		blockTime := rec.BlockTime
		out[i] = solana.SignatureInfo{Signature: rec.Signature, Slot: rec.Slot, BlockTime: &blockTime}
	}
	return out, nil
}

func (c *Client) GetSlot(context.Context) (uint64, error) {
	return c.v.Runtime.Slot(), nil
}
