package agent

import (
	"context"
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiniAppHandler_LaunchFastPath(t *testing.T) {
	h := NewMiniAppHandler(model.NewMockCompleter(), nil)
	ctx := context.Background()

	resp, err := h.Handle(ctx, inbound("launch the poll app with alice and bob", "carol"), testAgentCtx("carol", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "poll")
	assert.Contains(t, resp.Text, "carol")

	h.mu.Lock()
	sessID := h.lastSession["c1"]
	h.mu.Unlock()
	sess, err := h.Apps().Get(sessID)
	require.NoError(t, err)
	assert.True(t, sess.Active)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, sess.Participants)
}

func TestMiniAppHandler_UnknownAppFallsThrough(t *testing.T) {
	h := NewMiniAppHandler(model.NewMockCompleter(), nil)

	// An uncatalogued app id skips the fast path and hits the model.
	resp, err := h.Handle(context.Background(), inbound("launch the spaceship app", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Mock response")
}

func TestMiniAppHandler_ListAppsFastPath(t *testing.T) {
	h := NewMiniAppHandler(model.NewMockCompleter(), nil)

	resp, err := h.Handle(context.Background(), inbound("which apps are there?", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "poll")
	assert.Contains(t, resp.Text, "countdown")
}

func TestMiniAppHandler_InteractAndCloseTools(t *testing.T) {
	h := NewMiniAppHandler(model.NewMockCompleter(), nil)
	ctx := context.Background()
	agentCtx := testAgentCtx("alice", "c1")

	_, err := h.Handle(ctx, inbound("launch poll with bob", "alice"), agentCtx)
	require.NoError(t, err)

	tc := core.NewToolContext(ctx, agentCtx, "fc1", nil)
	_, err = h.Tools()["interact_app"].Call(tc, map[string]any{
		"state": map[string]any{"question": "lunch?"},
	})
	require.NoError(t, err)

	_, err = h.Tools()["close_app"].Call(tc, map[string]any{})
	require.NoError(t, err)

	// Interaction after close is rejected and the blob stays unchanged.
	_, err = h.Tools()["interact_app"].Call(tc, map[string]any{
		"state": map[string]any{"question": "dinner?"},
	})
	require.Error(t, err)

	h.mu.Lock()
	sessID := h.lastSession["c1"]
	h.mu.Unlock()
	sess, err := h.Apps().Get(sessID)
	require.NoError(t, err)
	assert.Equal(t, "lunch?", sess.State["question"])
}
