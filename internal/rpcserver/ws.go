package rpcserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-nft-lab/internal/runtime"
	"solana-nft-lab/internal/solana"
)

type wsConfig struct {
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxPending     int
	maxMessageSize int64
}

func defaultWSConfig() wsConfig {
	pongWait := 60 * time.Second
	return wsConfig{
		writeWait:      10 * time.Second,
		pongWait:       pongWait,
		pingPeriod:     (pongWait * 9) / 10,
		maxPending:     1024,
		maxMessageSize: 64 << 10,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Subscription kinds, used as the metrics label.
const (
	subLogs      = "logs"
	subSignature = "signature"
)

// wsConn is one subscriber connection. Reads happen on readPump, writes on
// writePump; everything else enqueues on send.
type wsConn struct {
	s    *Server
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[int64]*wsSub
}

type wsSub struct {
	kind   string
	cancel func()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("failed to upgrade", zap.Error(err))
		return
	}

	c := &wsConn{
		s:    s,
		conn: conn,
		send: make(chan []byte, s.ws.maxPending),
		done: make(chan struct{}),
		subs: make(map[int64]*wsSub),
	}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// close tears the connection down once. It cancels runtime listeners, so it
// must not be called from inside one.
func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()

		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()
		for _, sub := range subs {
			sub.cancel()
			c.s.metrics.WSSubscriptions.WithLabelValues(sub.kind).Dec()
		}

		c.s.mu.Lock()
		delete(c.s.conns, c)
		c.s.mu.Unlock()
	})
}

func (c *wsConn) readPump() {
	defer c.close()

	cfg := c.s.ws
	c.conn.SetReadLimit(cfg.maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.s.log.Debug("unexpected close in websockets", zap.Error(err))
			}
			return
		}
		if err := c.conn.SetReadDeadline(time.Now().Add(cfg.pongWait)); err != nil {
			return
		}
		c.handle(msg)
	}
}

func (c *wsConn) writePump() {
	cfg := c.s.ws
	ticker := time.NewTicker(cfg.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.s.log.Debug("ws write", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue never blocks: it may run inside a runtime listener. A subscriber
// that falls maxPending messages behind is disconnected.
func (c *wsConn) enqueue(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		c.s.log.Error("marshal ws message", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.s.log.Warn("dropping slow ws subscriber")
		go c.close()
	}
}

func (c *wsConn) reply(id json.RawMessage, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		c.s.log.Error("marshal ws result", zap.Error(err))
		return
	}
	c.enqueue(&solana.RPCResponse{JSONRPC: "2.0", ID: id, Result: raw})
}

func (c *wsConn) replyError(id json.RawMessage, rpcErr *solana.RPCError) {
	c.enqueue(&solana.RPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr})
}

func (c *wsConn) notify(method string, sub int64, slot uint64, value solana.WSValue) {
	c.enqueue(&solana.WSNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params: &solana.WSNotificationParams{
			Subscription: sub,
			Result: solana.WSNotificationResult{
				Context: &solana.RPCContext{Slot: slot},
				Value:   value,
			},
		},
	})
}

func (c *wsConn) handle(msg []byte) {
	var req solana.RPCRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		c.enqueue(errorResponse(nil, solana.RPCCodeParseError, "Parse error"))
		return
	}

	start := time.Now()
	var rpcErr *solana.RPCError
	switch req.Method {
	case "logsSubscribe":
		rpcErr = c.logsSubscribe(&req)
	case "signatureSubscribe":
		rpcErr = c.signatureSubscribe(&req)
	case "logsUnsubscribe", "signatureUnsubscribe":
		rpcErr = c.unsubscribe(&req)
	default:
		rpcErr = &solana.RPCError{Code: solana.RPCCodeMethodNotFound, Message: "Method not found"}
	}

	var served error
	if rpcErr != nil {
		served = rpcErr
		c.replyError(req.ID, rpcErr)
	}
	c.s.metrics.RecordRPCServed(req.Method, served, time.Since(start).Seconds())
}

// add registers a subscription. It reports false if the connection is
// already closed, in which case the caller must cancel itself.
func (c *wsConn) add(id int64, sub *wsSub) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		return false
	}
	c.subs[id] = sub
	c.s.metrics.WSSubscriptions.WithLabelValues(sub.kind).Inc()
	return true
}

func (c *wsConn) remove(id int64) bool {
	c.mu.Lock()
	sub, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	sub.cancel()
	c.s.metrics.WSSubscriptions.WithLabelValues(sub.kind).Dec()
	return true
}

// logsSubscribe accepts "all", "allWithVotes" or {"mentions":[address]}.
func (c *wsConn) logsSubscribe(req *solana.RPCRequest) *solana.RPCError {
	if len(req.Params) == 0 {
		return invalidParams("missing logs filter")
	}

	var mentions map[solana.PublicKey]bool
	var selector string
	if err := json.Unmarshal(req.Params[0], &selector); err == nil {
		if selector != "all" && selector != "allWithVotes" {
			return invalidParams("unsupported logs filter %q", selector)
		}
	} else {
		var filter struct {
			Mentions []string `json:"mentions"`
		}
		if err := json.Unmarshal(req.Params[0], &filter); err != nil || len(filter.Mentions) == 0 {
			return invalidParams("invalid logs filter")
		}
		mentions = make(map[solana.PublicKey]bool, len(filter.Mentions))
		for _, m := range filter.Mentions {
			pk, err := solana.ParsePublicKey(m)
			if err != nil {
				return invalidParams("Invalid param: %v", err)
			}
			mentions[pk] = true
		}
	}

	id := c.s.subIDs.Add(1)
	// The confirmation goes out before the first notification can.
	c.reply(req.ID, id)

	cancel := c.s.v.Runtime.Subscribe(func(rec *runtime.TxRecord) {
		if mentions != nil && !mentionsAny(rec.Accounts, mentions) {
			return
		}
		c.notify("logsNotification", id, rec.Slot, solana.WSValue{
			Signature: rec.Signature.String(),
			Logs:      rec.Logs,
		})
	})
	if !c.add(id, &wsSub{kind: subLogs, cancel: cancel}) {
		cancel()
	}
	return nil
}

func mentionsAny(accounts []solana.PublicKey, mentions map[solana.PublicKey]bool) bool {
	for _, a := range accounts {
		if mentions[a] {
			return true
		}
	}
	return false
}

// signatureSubscribe sends one notification when the transaction commits,
// immediately if it already has, then retires the subscription.
func (c *wsConn) signatureSubscribe(req *solana.RPCRequest) *solana.RPCError {
	var encoded string
	if rpcErr := param(req.Params, 0, &encoded, true); rpcErr != nil {
		return rpcErr
	}
	sig, err := solana.ParseSignature(encoded)
	if err != nil {
		return invalidParams("Invalid param: %v", err)
	}

	id := c.s.subIDs.Add(1)
	c.reply(req.ID, id)

	var once sync.Once
	fire := func(slot uint64) {
		once.Do(func() {
			c.notify("signatureNotification", id, slot, solana.WSValue{})
			go c.remove(id)
		})
	}

	cancel := c.s.v.Runtime.Subscribe(func(rec *runtime.TxRecord) {
		if rec.Signature == sig {
			fire(rec.Slot)
		}
	})
	if !c.add(id, &wsSub{kind: subSignature, cancel: cancel}) {
		cancel()
		return nil
	}
	if rec, ok := c.s.v.Runtime.Transaction(sig); ok {
		fire(rec.Slot)
	}
	return nil
}

func (c *wsConn) unsubscribe(req *solana.RPCRequest) *solana.RPCError {
	var id int64
	if rpcErr := param(req.Params, 0, &id, true); rpcErr != nil {
		return rpcErr
	}
	c.reply(req.ID, c.remove(id))
	return nil
}
