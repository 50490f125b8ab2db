package agent

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/chain"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/feed"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTradingHandler() (*TradingHandler, *chain.MockActor, *feed.MockQuoter) {
	actor := chain.NewMockActor()
	quoter := feed.NewMockQuoter()
	h := NewTradingHandler(model.NewMockCompleter(), actor, quoter, nil)
	return h, actor, quoter
}

func TestTradingHandler_PriceFastPath(t *testing.T) {
	h, _, quoter := newTradingHandler()
	quoter.SetQuote("ETH", 3000)

	resp, err := h.Handle(context.Background(), inbound("what's the price of eth?", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Equal(t, HandlerTrading, resp.Handler)
	assert.Contains(t, resp.Text, "ETH")
	assert.Contains(t, resp.Text, "3000.00")
}

func TestTradingHandler_TransferTool(t *testing.T) {
	h, actor, _ := newTradingHandler()
	tc := core.NewToolContext(context.Background(), testAgentCtx("alice", "c1"), "fc1", nil)

	result, err := h.Tools()["transfer_funds"].Call(tc, map[string]any{
		"to":     "0xabc",
		"amount": 25.0,
		"asset":  "USDC",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result)

	balance, err := actor.Balance(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 25.0, balance)
}

func TestTradingHandler_TransferFastPathEmitsAction(t *testing.T) {
	h, actor, _ := newTradingHandler()

	resp, err := h.Handle(context.Background(), inbound("send 50 USDC to 0xabc", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Sent 50.00 USDC to 0xabc")
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, core.ActionTransaction, resp.Actions[0].Type)
	assert.Equal(t, "0xabc", resp.Actions[0].Payload["to"])

	balance, err := actor.Balance(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 50.0, balance)
}

func TestTradingHandler_SwapTool(t *testing.T) {
	h, actor, _ := newTradingHandler()
	actor.SetRate("ETH", "USDC", 3000)
	tc := core.NewToolContext(context.Background(), testAgentCtx("alice", "c1"), "fc1", nil)

	result, err := h.Tools()["swap_tokens"].Call(tc, map[string]any{
		"from_asset": "eth",
		"to_asset":   "usdc",
		"amount":     2.0,
	})
	require.NoError(t, err)
	got := result.(map[string]any)
	assert.Equal(t, 6000.0, got["received"])
	assert.NotEmpty(t, got["tx"])
}

func TestTradingHandler_TransferInsufficientFunds(t *testing.T) {
	h, actor, _ := newTradingHandler()
	actor.SetWalletBalance(1)
	tc := core.NewToolContext(context.Background(), testAgentCtx("alice", "c1"), "fc1", nil)

	_, err := h.Tools()["transfer_funds"].Call(tc, map[string]any{
		"to":     "0xabc",
		"amount": 100.0,
	})
	var ee *core.ExternalActionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "insufficient funds", ee.Reason)
}

func TestTradingHandler_TransferTimeout(t *testing.T) {
	h, actor, _ := newTradingHandler()
	actor.SetDelay(200 * time.Millisecond)
	h.chainTimeout = 20 * time.Millisecond
	tc := core.NewToolContext(context.Background(), testAgentCtx("alice", "c1"), "fc1", nil)

	_, err := h.Tools()["transfer_funds"].Call(tc, map[string]any{
		"to":     "0xabc",
		"amount": 10.0,
	})
	var ee *core.ExternalActionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Reason, "timed out")
}

func TestTradingHandler_MissingRequiredArgument(t *testing.T) {
	h, _, _ := newTradingHandler()
	tc := core.NewToolContext(context.Background(), testAgentCtx("alice", "c1"), "fc1", nil)

	_, err := h.Tools()["transfer_funds"].Call(tc, map[string]any{"amount": 10.0})
	require.Error(t, err)
}
