package rpcserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"solana-nft-lab/internal/programs/system"
	"solana-nft-lab/internal/solana"
)

const notifyTimeout = 5 * time.Second

func (c *testCluster) ws(t *testing.T) *solana.WSClientImpl {
	t.Helper()
	url := "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/ws"
	client, err := solana.NewWSClient(context.Background(), url, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLogsSubscribe_Mentions(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()
	ws := c.ws(t)

	watched := solana.PublicKey{11}
	logs, err := ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []solana.PublicKey{watched}})
	require.NoError(t, err)

	_, err = c.v.Airdrop(ctx, solana.PublicKey{12}, 1000)
	require.NoError(t, err)
	sig, err := c.v.Airdrop(ctx, watched, 1000)
	require.NoError(t, err)

	select {
	case n := <-logs:
		assert.Equal(t, sig, n.Signature)
		assert.Nil(t, n.Err)
		assert.Contains(t, n.Logs, "Program "+solana.SystemProgramID.String()+" success")
	case <-time.After(notifyTimeout):
		t.Fatal("no logs notification")
	}
}

func TestLogsSubscribe_All(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()
	ws := c.ws(t)

	logs, err := ws.SubscribeLogs(ctx, solana.LogsFilter{})
	require.NoError(t, err)

	var sent []solana.Signature
	for i := byte(1); i <= 3; i++ {
		sig, err := c.v.Airdrop(ctx, solana.PublicKey{i}, 1000)
		require.NoError(t, err)
		sent = append(sent, sig)
	}

	for _, want := range sent {
		select {
		case n := <-logs:
			assert.Equal(t, want, n.Signature)
		case <-time.After(notifyTimeout):
			t.Fatal("no logs notification")
		}
	}
}

func TestSignatureSubscribe(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()
	ws := c.ws(t)

	from := c.funded(t, solana.LamportsPerSOL)
	tx := c.signed(t, from, []solana.Instruction{system.Transfer(from.PublicKey, solana.PublicKey{3}, 1000)})

	notes, err := ws.SubscribeSignature(ctx, tx.Signature())
	require.NoError(t, err)

	_, err = c.client.SendTransaction(ctx, tx)
	require.NoError(t, err)

	select {
	case n, ok := <-notes:
		require.True(t, ok)
		assert.Nil(t, n.Err)
		assert.Equal(t, c.v.Runtime.Slot(), n.Slot)
	case <-time.After(notifyTimeout):
		t.Fatal("no signature notification")
	}
}

func TestSignatureSubscribe_AlreadyCommitted(t *testing.T) {
	c := newTestCluster(t)
	ctx := context.Background()
	ws := c.ws(t)

	sig, err := c.v.Airdrop(ctx, solana.PublicKey{4}, 1000)
	require.NoError(t, err)

	notes, err := ws.SubscribeSignature(ctx, sig)
	require.NoError(t, err)

	select {
	case n := <-notes:
		assert.Nil(t, n.Err)
		assert.Equal(t, uint64(1), n.Slot)
	case <-time.After(notifyTimeout):
		t.Fatal("no signature notification")
	}
}
