package solana

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrClientClosed = errors.New("client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription id.
	SubscribeTimeout time.Duration
	// Commitment is passed with every subscription.
	Commitment string
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        DefaultCommitment,
	}
}

// subscription is one live server-side subscription and its consumer.
type subscription struct {
	method string
	params []interface{}

	logs chan LogNotification
	sig  chan SignatureNotification
}

func (s *subscription) close() {
	if s.logs != nil {
		close(s.logs)
	}
	if s.sig != nil {
		close(s.sig)
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	log      *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps server subscription id to its consumer
	subs   map[int64]*subscription
	subsMu sync.Mutex

	// pending maps request id to the subscription awaiting its server id
	pending   map[uint64]*pendingSub
	pendingMu sync.Mutex

	done         chan struct{}
	wg           sync.WaitGroup
	reconnecting atomic.Bool
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, log *zap.Logger) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		log:      log.With(zap.String("component", "ws"), zap.String("endpoint", endpoint)),
		subs:     make(map[int64]*subscription),
		pending:  make(map[uint64]*pendingSub),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *WSClientImpl) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "websocket dial")
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	return nil
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	var selector interface{} = "all"
	if len(filter.Mentions) > 0 {
		mentions := make([]string, len(filter.Mentions))
		for i, m := range filter.Mentions {
			mentions[i] = m.String()
		}
		selector = map[string]interface{}{"mentions": mentions}
	}

	sub := &subscription{
		method: "logsSubscribe",
		params: []interface{}{selector, map[string]string{"commitment": c.config.Commitment}},
		// Blocking send ensures no event loss; buffer absorbs bursts.
		logs: make(chan LogNotification, 1024),
	}
	if err := c.subscribe(ctx, sub); err != nil {
		return nil, err
	}
	return sub.logs, nil
}

// SubscribeSignature waits for the outcome of one transaction.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, sig Signature) (<-chan SignatureNotification, error) {
	sub := &subscription{
		method: "signatureSubscribe",
		params: []interface{}{sig.String(), map[string]string{"commitment": c.config.Commitment}},
		sig:    make(chan SignatureNotification, 1),
	}
	if err := c.subscribe(ctx, sub); err != nil {
		return nil, err
	}
	return sub.sig, nil
}

type pendingSub struct {
	sub     *subscription
	confirm chan int64
}

func (c *WSClientImpl) subscribe(ctx context.Context, sub *subscription) error {
	_, err := c.request(ctx, sub)
	return err
}

// request sends a subscribe call and waits for the subscription id. The read
// loop registers sub before confirming, so no notification is missed.
func (c *WSClientImpl) request(ctx context.Context, sub *subscription) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}
	method := sub.method

	reqID := c.requestID.Add(1)
	confirm := make(chan int64, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = &pendingSub{sub: sub, confirm: confirm}
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		forget()
		return 0, errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(clientRequest{JSONRPC: "2.0", ID: reqID, Method: method, Params: sub.params})
	c.connMu.Unlock()
	if err != nil {
		forget()
		return 0, errors.Wrapf(err, "write %s", method)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case id, ok := <-confirm:
		if !ok {
			return 0, ErrClientClosed
		}
		return id, nil
	case <-timer.C:
		forget()
		return 0, errors.Errorf("%s timeout after %s", method, c.config.SubscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.close()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, p := range c.pending {
		close(p.confirm)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
	return nil
}

// readLoop reads messages and dispatches them until Close.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.log.Warn("read failed, reconnecting", zap.Error(err), zap.Duration("delay", reconnectDelay))
			if !c.reconnecting.Swap(true) {
				go c.reconnect(conn, reconnectDelay)
			}
			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

func (c *WSClientImpl) sleep(d time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(d):
		return true
	}
}

// reconnect replaces a dead connection and re-registers live subscriptions.
func (c *WSClientImpl) reconnect(dead *websocket.Conn, delay time.Duration) {
	defer c.reconnecting.Store(false)

	if !c.sleep(delay) {
		return
	}

	c.connMu.Lock()
	if c.conn == dead {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.log.Warn("reconnect failed", zap.Error(err))
		return
	}
	c.resubscribeAll()
}

func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.Lock()
	old := make(map[int64]*subscription, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.subsMu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.request(ctx, sub)
		cancel()
		if err != nil {
			c.log.Warn("resubscribe failed", zap.String("method", sub.method), zap.Error(err))
			continue
		}

		if newID != oldID {
			c.subsMu.Lock()
			delete(c.subs, oldID)
			c.subsMu.Unlock()
		}
	}
}

// wsEnvelope covers both subscribe responses and notifications.
type wsEnvelope struct {
	ID     uint64                `json:"id"`
	Result json.RawMessage       `json:"result"`
	Error  *RPCError             `json:"error"`
	Method string                `json:"method"`
	Params *WSNotificationParams `json:"params"`
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.log.Warn("undecodable message", zap.Error(err))
		return
	}

	switch {
	case env.Error != nil:
		// the pending subscribe times out on its own
		c.log.Warn("error response", zap.Uint64("id", env.ID), zap.Int("code", env.Error.Code), zap.String("message", env.Error.Message))
	case env.Method == "logsNotification" && env.Params != nil:
		c.handleLogs(env.Params)
	case env.Method == "signatureNotification" && env.Params != nil:
		c.handleSignature(env.Params)
	case env.ID != 0 && len(env.Result) > 0:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.pendingMu.Lock()
		p, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.pendingMu.Unlock()
		if !ok {
			return
		}
		c.subsMu.Lock()
		c.subs[subID] = p.sub
		c.subsMu.Unlock()
		p.confirm <- subID
	}
}

func (c *WSClientImpl) handleLogs(p *WSNotificationParams) {
	c.subsMu.Lock()
	sub, ok := c.subs[p.Subscription]
	c.subsMu.Unlock()
	if !ok || sub.logs == nil {
		return
	}

	n := LogNotification{Logs: p.Result.Value.Logs, Err: p.Result.Value.Err}
	if sig, err := ParseSignature(p.Result.Value.Signature); err == nil {
		n.Signature = sig
	}
	if p.Result.Context != nil {
		n.Slot = p.Result.Context.Slot
	}

	select {
	case sub.logs <- n:
	case <-c.done:
	}
}

// handleSignature delivers the outcome and retires the subscription; the
// server cancels signature subscriptions after one notification.
func (c *WSClientImpl) handleSignature(p *WSNotificationParams) {
	c.subsMu.Lock()
	sub, ok := c.subs[p.Subscription]
	if ok {
		delete(c.subs, p.Subscription)
	}
	c.subsMu.Unlock()
	if !ok || sub.sig == nil {
		return
	}

	n := SignatureNotification{Err: p.Result.Value.Err}
	if p.Result.Context != nil {
		n.Slot = p.Result.Context.Slot
	}
	sub.sig <- n
	close(sub.sig)
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}
