package rpcserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

// defaultSignaturesLimit matches the cluster's getSignaturesForAddress cap.
const defaultSignaturesLimit = 1000

func invalidParams(format string, args ...interface{}) *solana.RPCError {
	return &solana.RPCError{Code: solana.RPCCodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func internalError(err error) *solana.RPCError {
	return &solana.RPCError{Code: solana.RPCCodeInternalError, Message: err.Error()}
}

// param decodes params[i] into v. Missing optional params leave v untouched.
func param(params []json.RawMessage, i int, v interface{}, required bool) *solana.RPCError {
	if i >= len(params) || string(params[i]) == "null" {
		if required {
			return invalidParams("missing parameter %d", i)
		}
		return nil
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return invalidParams("invalid parameter %d: %v", i, err)
	}
	return nil
}

func addressParam(params []json.RawMessage, i int) (solana.PublicKey, *solana.RPCError) {
	var s string
	if err := param(params, i, &s, true); err != nil {
		return solana.PublicKey{}, err
	}
	pk, err := solana.ParsePublicKey(s)
	if err != nil {
		return solana.PublicKey{}, invalidParams("Invalid param: %v", err)
	}
	return pk, nil
}

func (s *Server) context() solana.RPCContext {
	return solana.RPCContext{Slot: s.v.Runtime.Slot()}
}

func (s *Server) getAccountInfo(ctx context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	addr, rpcErr := addressParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var cfg struct {
		Encoding string `json:"encoding"`
	}
	if rpcErr := param(params, 1, &cfg, false); rpcErr != nil {
		return nil, rpcErr
	}
	if cfg.Encoding != "" && cfg.Encoding != "base64" {
		return nil, invalidParams("unsupported encoding %q", cfg.Encoding)
	}

	result := solana.AccountInfoResult{Context: s.context()}
	acct, err := s.v.Runtime.Account(ctx, addr)
	if err != nil {
		return nil, internalError(err)
	}
	if acct != nil {
		result.Value = solana.NewAccountInfoValue(acct.Info())
	}
	return result, nil
}

func (s *Server) getBalance(ctx context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	addr, rpcErr := addressParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result := solana.BalanceResult{Context: s.context()}
	acct, err := s.v.Runtime.Account(ctx, addr)
	if err != nil {
		return nil, internalError(err)
	}
	if acct != nil {
		result.Value = acct.Lamports
	}
	return result, nil
}

func (s *Server) getLatestBlockhash(_ context.Context, _ []json.RawMessage) (interface{}, *solana.RPCError) {
	hash, lastValid := s.v.Runtime.LatestBlockhash()
	result := solana.LatestBlockhashResult{Context: s.context()}
	result.Value.Blockhash = hash.String()
	result.Value.LastValidBlockHeight = lastValid
	return result, nil
}

func (s *Server) getMinimumBalanceForRentExemption(_ context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	var n int
	if rpcErr := param(params, 0, &n, true); rpcErr != nil {
		return nil, rpcErr
	}
	if n < 0 {
		return nil, invalidParams("negative data length %d", n)
	}
	return runtime.RentExemptMinimum(n), nil
}

func (s *Server) requestAirdrop(ctx context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	addr, rpcErr := addressParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var lamports uint64
	if rpcErr := param(params, 1, &lamports, true); rpcErr != nil {
		return nil, rpcErr
	}

	sig, err := s.v.Airdrop(ctx, addr, lamports)
	if err != nil {
		s.log.Warn("airdrop failed", zap.Stringer("to", addr), zap.Error(err))
		return nil, internalError(err)
	}
	return sig.String(), nil
}

// decodeTransaction reads params[0] in the encoding named by the config in
// params[1]; base58 is the cluster default.
func decodeTransaction(params []json.RawMessage) (*solana.Transaction, *solana.RPCError) {
	var encoded string
	if rpcErr := param(params, 0, &encoded, true); rpcErr != nil {
		return nil, rpcErr
	}
	var cfg struct {
		Encoding string `json:"encoding"`
	}
	if rpcErr := param(params, 1, &cfg, false); rpcErr != nil {
		return nil, rpcErr
	}

	var (
		raw []byte
		err error
	)
	switch cfg.Encoding {
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(encoded)
	case "base58", "":
		raw, err = base58.Decode(encoded)
	default:
		return nil, invalidParams("unsupported encoding %q", cfg.Encoding)
	}
	if err != nil {
		return nil, invalidParams("invalid transaction encoding: %v", err)
	}

	var tx solana.Transaction
	if err := tx.Unmarshal(raw); err != nil {
		return nil, invalidParams("failed to deserialize transaction: %v", err)
	}
	return &tx, nil
}

// sendTransaction executes the transaction synchronously. A rejected
// transaction is reported as a preflight failure carrying its logs.
func (s *Server) sendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	tx, rpcErr := decodeTransaction(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	res, err := s.v.Runtime.Process(ctx, tx)
	if err != nil {
		s.log.Error("process transaction", zap.Stringer("signature", tx.Signature()), zap.Error(err))
		return nil, internalError(err)
	}
	if res.Err != nil {
		data, _ := json.Marshal(solana.PreflightFailure{Err: res.Err, Logs: res.Logs})
		return nil, &solana.RPCError{
			Code:    solana.RPCCodeSendTxPreflight,
			Message: "Transaction simulation failed: " + res.Err.Error(),
			Data:    data,
		}
	}
	return res.Signature.String(), nil
}

func (s *Server) simulateTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	tx, rpcErr := decodeTransaction(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	res, err := s.v.Runtime.Simulate(ctx, tx)
	if err != nil {
		return nil, internalError(err)
	}
	result := solana.SimulateResult{Context: s.context()}
	result.Value.Err = res.Err
	result.Value.Logs = res.Logs
	if result.Value.Logs == nil {
		result.Value.Logs = []string{}
	}
	return result, nil
}

func parseSignatures(encoded []string) ([]solana.Signature, *solana.RPCError) {
	sigs := make([]solana.Signature, len(encoded))
	for i, e := range encoded {
		sig, err := solana.ParseSignature(e)
		if err != nil {
			return nil, invalidParams("Invalid param: %v", err)
		}
		sigs[i] = sig
	}
	return sigs, nil
}

// getSignatureStatuses reports every committed transaction as finalized;
// a single node has nothing to wait for.
func (s *Server) getSignatureStatuses(_ context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	var encoded []string
	if rpcErr := param(params, 0, &encoded, true); rpcErr != nil {
		return nil, rpcErr
	}
	sigs, rpcErr := parseSignatures(encoded)
	if rpcErr != nil {
		return nil, rpcErr
	}

	result := solana.SignatureStatusesResult{
		Context: s.context(),
		Value:   make([]*solana.SignatureStatusValue, len(sigs)),
	}
	for i, sig := range sigs {
		rec, ok := s.v.Runtime.Transaction(sig)
		if !ok {
			continue
		}
		result.Value[i] = &solana.SignatureStatusValue{
			Slot:               rec.Slot,
			ConfirmationStatus: solana.CommitmentFinalized,
		}
	}
	return result, nil
}

func (s *Server) getTransaction(_ context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	var encoded string
	if rpcErr := param(params, 0, &encoded, true); rpcErr != nil {
		return nil, rpcErr
	}
	sigs, rpcErr := parseSignatures([]string{encoded})
	if rpcErr != nil {
		return nil, rpcErr
	}

	rec, ok := s.v.Runtime.Transaction(sigs[0])
	if !ok {
		return nil, nil
	}
	blockTime := rec.BlockTime
	return &solana.TransactionResultValue{
		Slot:      rec.Slot,
		BlockTime: &blockTime,
		Meta: &solana.TransactionMeta{
			Fee:         rec.Fee,
			LogMessages: rec.Logs,
		},
		Transaction: &solana.TransactionEnvelope{
			Signatures: []string{rec.Signature.String()},
			Message:    &solana.TransactionMessage{AccountKeys: rec.Accounts},
		},
	}, nil
}

func (s *Server) getSignaturesForAddress(_ context.Context, params []json.RawMessage) (interface{}, *solana.RPCError) {
	addr, rpcErr := addressParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var cfg struct {
		Limit  int    `json:"limit"`
		Before string `json:"before"`
		Until  string `json:"until"`
	}
	if rpcErr := param(params, 1, &cfg, false); rpcErr != nil {
		return nil, rpcErr
	}
	if cfg.Limit <= 0 || cfg.Limit > defaultSignaturesLimit {
		cfg.Limit = defaultSignaturesLimit
	}

	// Newest first: skip down to before (exclusive), stop at until (exclusive).
	out := make([]solana.SignatureInfoValue, 0)
	skipping := cfg.Before != ""
	for _, rec := range s.v.Runtime.SignaturesForAddress(addr, 0) {
		sig := rec.Signature.String()
		if skipping {
			if sig == cfg.Before {
				skipping = false
			}
			continue
		}
		if sig == cfg.Until || len(out) == cfg.Limit {
			break
		}
		blockTime := rec.BlockTime
		out = append(out, solana.SignatureInfoValue{Signature: sig, Slot: rec.Slot, BlockTime: &blockTime})
	}
	return out, nil
}

func (s *Server) getSlot(_ context.Context, _ []json.RawMessage) (interface{}, *solana.RPCError) {
	return s.v.Runtime.Slot(), nil
}

func (s *Server) getHealth(_ context.Context, _ []json.RawMessage) (interface{}, *solana.RPCError) {
	return "ok", nil
}
