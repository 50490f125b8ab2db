package chatmesh

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/chain"
	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMesh(t *testing.T, optFns ...func(o *Options)) *ChatMesh {
	t.Helper()
	mesh, err := New(optFns...)
	require.NoError(t, err)
	t.Cleanup(mesh.Close)
	return mesh
}

func TestChatMesh_SplitThenPay(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	resp, err := mesh.ProcessMessage(ctx, "let's split $120 between alice, bob, carol equally", "dana", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "utility", resp.Handler)
	assert.Contains(t, resp.Text, "40.00")

	resp, err = mesh.ProcessMessage(ctx, "i paid my share", "alice", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "utility", resp.Handler)
	assert.Contains(t, resp.Text, "partial")
}

func TestChatMesh_PayTimeoutLeavesSplitUnpaid(t *testing.T) {
	actor := chain.NewMockActor()
	mesh := newTestMesh(t, func(o *Options) { o.Actor = actor })
	ctx := context.Background()

	_, err := mesh.ProcessMessage(ctx, "split $90 between alice and bob", "dana", "chat-1")
	require.NoError(t, err)

	// Slow chain: the transfer times out, the user is told and the share
	// stays unpaid.
	actor.SetDelay(time.Second)
	payCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	resp, err := mesh.ProcessMessage(payCtx, "i paid my share", "alice", "chat-1")
	if err == nil {
		assert.Contains(t, resp.Text, "timed out")
	}

	actor.SetDelay(0)
	resp, err = mesh.ProcessMessage(ctx, "i paid my share", "alice", "chat-1")
	require.NoError(t, err)
	// The earlier attempt left no paid flag behind, so paying now succeeds.
	assert.Contains(t, resp.Text, "alice")
	assert.Contains(t, resp.Text, "partial")
}

func TestChatMesh_PriceLookup(t *testing.T) {
	mesh := newTestMesh(t)

	resp, err := mesh.ProcessMessage(context.Background(), "what's the price of eth?", "bob", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "trading", resp.Handler)
	assert.Contains(t, resp.Text, "ETH")
}

func TestChatMesh_GameStart(t *testing.T) {
	mesh := newTestMesh(t)

	resp, err := mesh.ProcessMessage(context.Background(), "start a trivia game with alice and bob", "carol", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "gaming", resp.Handler)
	assert.Contains(t, resp.Text, "waiting")
}

func TestChatMesh_HelpGoesToMaster(t *testing.T) {
	mesh := newTestMesh(t)

	resp, err := mesh.ProcessMessage(context.Background(), "help", "alice", "chat-1")
	require.NoError(t, err)
	assert.Equal(t, core.HandlerMaster, resp.Handler)
	assert.Contains(t, resp.Text, "utility")
	assert.Contains(t, resp.Text, "miniapp")
}

func TestChatMesh_SeparateConversationsAreIsolated(t *testing.T) {
	mesh := newTestMesh(t)
	ctx := context.Background()

	_, err := mesh.ProcessMessage(ctx, "split $50 between alice and bob", "dana", "chat-1")
	require.NoError(t, err)

	// The other conversation has no split to pay.
	resp, err := mesh.ProcessMessage(ctx, "i paid my share", "alice", "chat-2")
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "couldn't find")
}

func TestChatMesh_RegisterCustomHandler(t *testing.T) {
	mesh := newTestMesh(t)

	err := mesh.RegisterHandler(agent.NewMaster(nil, nil))
	// The master name is reserved.
	assert.Error(t, err)

	health := mesh.Health()
	names := make([]string, len(health.Handlers))
	for i, h := range health.Handlers {
		names[i] = h.Name
	}
	assert.Equal(t, []string{"utility", "trading", "gaming", "social", "miniapp"}, names)
}
