package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/feed"
	"github.com/hupe1980/chatmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocialHandler_FeedFastPathUsesInterests(t *testing.T) {
	provider := feed.NewMockContentProvider()
	h := NewSocialHandler(model.NewMockCompleter(), provider, nil)
	ctx := context.Background()
	agentCtx := testAgentCtx("alice", "c1")

	h.Prefs().SetInterests("alice", []string{"gaming"})

	resp, err := h.Handle(ctx, inbound("any news for me?", "alice"), agentCtx)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "gaming")
	assert.NotContains(t, resp.Text, "governance")
}

func TestSocialHandler_FeedUnavailable(t *testing.T) {
	provider := feed.NewMockContentProvider()
	provider.SetError(errors.New("upstream down"))
	h := NewSocialHandler(model.NewMockCompleter(), provider, nil)

	resp, err := h.Handle(context.Background(), inbound("show my feed", "alice"), testAgentCtx("alice", "c1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "fetch_feed")
}

func TestSocialHandler_PreferenceTools(t *testing.T) {
	h := NewSocialHandler(model.NewMockCompleter(), feed.NewMockContentProvider(), nil)
	tc := core.NewToolContext(context.Background(), testAgentCtx("alice", "c1"), "fc1", nil)

	_, err := h.Tools()["set_interests"].Call(tc, map[string]any{
		"interests": []any{"DeFi", "payments"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"defi", "payments"}, h.Prefs().Get("alice").Interests)

	_, err = h.Tools()["set_notifications"].Call(tc, map[string]any{"daily": true})
	require.NoError(t, err)
	prefs := h.Prefs().Get("alice")
	assert.True(t, prefs.NotifyDaily)
	assert.False(t, prefs.NotifyMention)
	// Interests survive the flag update.
	assert.Equal(t, []string{"defi", "payments"}, prefs.Interests)
}
