// Package rpcserver exposes a validator over the Solana JSON-RPC API: HTTP
// requests on /, subscriptions on /ws, plus /health, /status and /metrics.
package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-nft-lab/internal/observability"
	"solana-nft-lab/internal/solana"
	"solana-nft-lab/internal/validator"
)

const (
	maxRequestBytes = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// handlerFunc serves one JSON-RPC method.
type handlerFunc func(ctx context.Context, params []json.RawMessage) (interface{}, *solana.RPCError)

// Server serves the JSON-RPC API of one validator.
type Server struct {
	v       *validator.Validator
	log     *zap.Logger
	metrics *observability.Metrics
	methods map[string]handlerFunc
	started time.Time

	ws     wsConfig
	subIDs atomic.Int64

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics overrides the default metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server for v.
func New(v *validator.Validator, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		v:       v,
		log:     log.With(zap.String("component", "rpc")),
		metrics: observability.DefaultMetrics,
		started: time.Now(),
		ws:      defaultWSConfig(),
		conns:   make(map[*wsConn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.methods = map[string]handlerFunc{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
		"simulateTransaction":               s.simulateTransaction,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"getTransaction":                    s.getTransaction,
		"getSignaturesForAddress":           s.getSignaturesForAddress,
		"getSlot":                           s.getSlot,
		"getHealth":                         s.getHealth,
	}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRPC)
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", observability.Handler())
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("rpc server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "rpc server")
	case <-ctx.Done():
	}

	s.closeConns()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown rpc server")
	}
	return nil
}

// serveRPC handles a single or batched JSON-RPC request.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var resp interface{}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []solana.RPCRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			resp = errorResponse(nil, solana.RPCCodeParseError, "Parse error")
		} else {
			out := make([]*solana.RPCResponse, len(reqs))
			for i := range reqs {
				out[i] = s.dispatch(r.Context(), &reqs[i])
			}
			resp = out
		}
	} else {
		var req solana.RPCRequest
		if err := json.Unmarshal(body, &req); err != nil {
			resp = errorResponse(nil, solana.RPCCodeParseError, "Parse error")
		} else {
			resp = s.dispatch(r.Context(), &req)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

func (s *Server) dispatch(ctx context.Context, req *solana.RPCRequest) *solana.RPCResponse {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, solana.RPCCodeInvalidRequest, "Invalid request")
	}
	h, ok := s.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, solana.RPCCodeMethodNotFound, "Method not found")
	}

	start := time.Now()
	result, rpcErr := h(ctx, req.Params)

	var served error
	if rpcErr != nil {
		served = rpcErr
	}
	s.metrics.RecordRPCServed(req.Method, served, time.Since(start).Seconds())

	if rpcErr != nil {
		return &solana.RPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Error("marshal result", zap.String("method", req.Method), zap.Error(err))
		return errorResponse(req.ID, solana.RPCCodeInternalError, "Internal error")
	}
	return &solana.RPCResponse{JSONRPC: "2.0", ID: req.ID, Result: raw}
}

func errorResponse(id json.RawMessage, code int, msg string) *solana.RPCResponse {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &solana.RPCResponse{JSONRPC: "2.0", ID: id, Error: &solana.RPCError{Code: code, Message: msg}}
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Slot            uint64 `json:"slot"`
	Faucet          string `json:"faucet"`
	WSConnections   int    `json:"ws_connections"`
	LatestBlockhash string `json:"latest_blockhash"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	conns := len(s.conns)
	s.mu.Unlock()

	hash, _ := s.v.Runtime.LatestBlockhash()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).Truncate(time.Second).String(),
		Slot:            s.v.Runtime.Slot(),
		Faucet:          s.v.Faucet.PublicKey.String(),
		WSConnections:   conns,
		LatestBlockhash: hash.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
