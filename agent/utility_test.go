package agent

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/chatmesh/chain"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgentCtx(user, conversation string) *core.AgentContext {
	return &core.AgentContext{UserID: user, ConversationID: conversation}
}

func inbound(content, sender string) core.InboundMessage {
	return core.InboundMessage{Content: content, SenderID: sender, Timestamp: time.Now().UTC()}
}

func TestUtilityHandler_SplitFastPath(t *testing.T) {
	h := NewUtilityHandler(model.NewMockCompleter(), chain.NewMockActor(), nil)
	ctx := context.Background()

	resp, err := h.Handle(ctx, inbound("let's split $120 between alice, bob, carol equally", "dana"), testAgentCtx("dana", "c1"))
	require.NoError(t, err)
	assert.Equal(t, HandlerUtility, resp.Handler)
	assert.Contains(t, resp.Text, "40.00")
	assert.Contains(t, resp.Text, "alice, bob, carol")

	// The split is stored pending with one share per participant.
	h.mu.Lock()
	splitID := h.lastSplit["c1"]
	h.mu.Unlock()
	require.NotEmpty(t, splitID)
	split, err := h.Splits().Get(splitID)
	require.NoError(t, err)
	assert.Equal(t, session.SplitPending, split.Status)
	assert.Len(t, split.Shares, 3)
}

func TestUtilityHandler_PaySharePaysThenMarks(t *testing.T) {
	actor := chain.NewMockActor()
	h := NewUtilityHandler(model.NewMockCompleter(), actor, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, inbound("split $90 between alice, bob and carol", "dana"), testAgentCtx("dana", "c1"))
	require.NoError(t, err)

	resp, err := h.Handle(ctx, inbound("i paid my share", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "alice")

	h.mu.Lock()
	splitID := h.lastSplit["c1"]
	h.mu.Unlock()
	split, err := h.Splits().Get(splitID)
	require.NoError(t, err)
	assert.Equal(t, session.SplitPartial, split.Status)
}

func TestUtilityHandler_PayShareTimeoutLeavesUnpaid(t *testing.T) {
	actor := chain.NewMockActor()
	actor.SetDelay(200 * time.Millisecond)
	h := NewUtilityHandler(model.NewMockCompleter(), actor, nil)
	h.chainTimeout = 20 * time.Millisecond
	ctx := context.Background()

	_, err := h.Handle(ctx, inbound("split $90 between alice, bob and carol", "dana"), testAgentCtx("dana", "c1"))
	require.NoError(t, err)

	// The transfer times out; the response names the timeout and the paid
	// flag is untouched.
	resp, err := h.Handle(ctx, inbound("i paid my share", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "timed out")

	h.mu.Lock()
	splitID := h.lastSplit["c1"]
	h.mu.Unlock()
	split, err := h.Splits().Get(splitID)
	require.NoError(t, err)
	assert.Equal(t, session.SplitPending, split.Status)
	for _, s := range split.Shares {
		assert.False(t, s.Paid)
	}
}

func TestUtilityHandler_PayShareRejectsNonParticipant(t *testing.T) {
	h := NewUtilityHandler(model.NewMockCompleter(), chain.NewMockActor(), nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, inbound("split $90 between alice and bob", "dana"), testAgentCtx("dana", "c1"))
	require.NoError(t, err)

	resp, err := h.Handle(ctx, inbound("i paid my share", "mallory"), testAgentCtx("mallory", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "doesn't work")

	h.mu.Lock()
	splitID := h.lastSplit["c1"]
	h.mu.Unlock()
	split, err := h.Splits().Get(splitID)
	require.NoError(t, err)
	assert.Equal(t, session.SplitPending, split.Status)
}

func TestUtilityHandler_EventFastPath(t *testing.T) {
	h := NewUtilityHandler(model.NewMockCompleter(), chain.NewMockActor(), nil)
	ctx := context.Background()

	resp, err := h.Handle(ctx, inbound("let's plan a birthday event", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "birthday")

	h.mu.Lock()
	eventID := h.lastEvent["c1"]
	h.mu.Unlock()
	plan, err := h.Events().Get(eventID)
	require.NoError(t, err)
	assert.Equal(t, session.EventPlanning, plan.Status)
	assert.Contains(t, plan.Participants, "alice")
}

func TestUtilityHandler_AddExpenseAcceptsIntAmount(t *testing.T) {
	h := NewUtilityHandler(model.NewMockCompleter(), chain.NewMockActor(), nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, inbound("let's plan a pizza event", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)

	// A directly supplied Go int must behave like the float64 a JSON decoder
	// would produce.
	require.NotPanics(t, func() {
		_, err = h.callTool(ctx, testAgentCtx("alice", "c1"), "add_expense", map[string]any{
			"description": "pizza",
			"amount":      30,
		})
	})
	require.NoError(t, err)

	h.mu.Lock()
	eventID := h.lastEvent["c1"]
	h.mu.Unlock()
	plan, err := h.Events().Get(eventID)
	require.NoError(t, err)
	require.Len(t, plan.Expenses, 1)
	assert.Equal(t, 30.0, plan.Expenses[0].Amount)
}

func TestUtilityHandler_ShouldHandle(t *testing.T) {
	h := NewUtilityHandler(model.NewMockCompleter(), chain.NewMockActor(), nil)

	assert.True(t, h.ShouldHandle(inbound("split the bill please", "a"), nil))
	assert.True(t, h.ShouldHandle(inbound("who owes what?", "a"), nil))
	assert.False(t, h.ShouldHandle(inbound("good morning everyone", "a"), nil))
}

func TestUtilityHandler_SuggestNext(t *testing.T) {
	h := NewUtilityHandler(model.NewMockCompleter(), chain.NewMockActor(), nil)

	assert.Equal(t, HandlerTrading, h.SuggestNext(inbound("check the token price", "a"), nil))
	assert.Equal(t, HandlerGaming, h.SuggestNext(inbound("let's play something", "a"), nil))
	assert.Equal(t, core.HandlerMaster, h.SuggestNext(inbound("thanks!", "a"), nil))
}
