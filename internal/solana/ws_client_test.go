package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newWSServer upgrades each connection and hands every decoded request to
// handle, which may write responses on conn.
func newWSServer(t *testing.T, handle func(conn *websocket.Conn, req clientRequest)) (*httptest.Server, string) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req clientRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}
			if handle != nil {
				handle(conn, req)
			}
		}
	}))
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	server, wsURL := newWSServer(t, nil)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	sig := Signature{5}
	program := MustParsePublicKey("7ghLrtu6EqZuRcNQX5cvWp8THJ6tgfbSXEAKZ8GhVRy4")

	server, wsURL := newWSServer(t, func(conn *websocket.Conn, req clientRequest) {
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}
		raw, _ := json.Marshal(req.Params[0])
		if !strings.Contains(string(raw), program.String()) {
			t.Errorf("expected mentions filter with %s, got %s", program, raw)
		}

		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 12345})
		conn.WriteJSON(WSNotification{
			JSONRPC: "2.0",
			Method:  "logsNotification",
			Params: &WSNotificationParams{
				Subscription: 12345,
				Result: WSNotificationResult{
					Context: &RPCContext{Slot: 100},
					Value: WSValue{
						Signature: sig.String(),
						Logs:      []string{"Program log: Instruction: MintNft"},
					},
				},
			},
		})
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []PublicKey{program}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != sig {
			t.Errorf("expected %s, got %s", sig, notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	server, wsURL := newWSServer(t, func(conn *websocket.Conn, req clientRequest) {
		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 7})
		conn.WriteJSON(WSNotification{
			JSONRPC: "2.0",
			Method:  "signatureNotification",
			Params: &WSNotificationParams{
				Subscription: 7,
				Result: WSNotificationResult{
					Context: &RPCContext{Slot: 9},
					Value:   WSValue{Err: NewCustomError(0, 6005)},
				},
			},
		})
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, Signature{1})
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case n := <-ch:
		if n.Slot != 9 {
			t.Errorf("expected slot 9, got %d", n.Slot)
		}
		if code, _ := n.Err.CustomCode(); code != 6005 {
			t.Errorf("expected custom code 6005, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to close after one notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server, wsURL := newWSServer(t, nil)
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL, &cfg, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeSignature(context.Background(), Signature{1}); err == nil {
		t.Error("expected timeout error")
	}
}

func TestWSClient_Close(t *testing.T) {
	server, wsURL := newWSServer(t, func(conn *websocket.Conn, req clientRequest) {
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 1})
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	ch, err := client.SubscribeLogs(ctx, LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	if _, err := client.SubscribeLogs(ctx, LogsFilter{}); err != ErrClientClosed {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}
