package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/feed"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/tool"
)

// defaultFeedLimit caps a curated feed response.
const defaultFeedLimit = 5

// SocialHandler owns user preferences and serves curated content from the
// external content provider.
type SocialHandler struct {
	baseHandler
	prefs    *session.PreferenceStore
	provider feed.ContentProvider

	fetchTimeout time.Duration
}

// NewSocialHandler constructs the social handler with a fresh preference
// store.
func NewSocialHandler(completer model.Completer, provider feed.ContentProvider, logger logging.Logger) *SocialHandler {
	h := &SocialHandler{
		baseHandler: newBaseHandler(
			HandlerSocial,
			"Manages content interests and notification settings and serves a curated feed.",
			"You are the social assistant of a group chat. You manage content preferences and fetch curated items through your tools.",
			completer,
			logger,
		),
		prefs:        session.NewPreferenceStore(),
		provider:     provider,
		fetchTimeout: 10 * time.Second,
	}
	h.keywords = []string{"news", "feed", "content", "interests", "interested", "notify", "notifications", "subscribe", "digest"}
	h.hints = []hint{
		{keywords: []string{"price", "token", "trade"}, handler: HandlerTrading},
		{keywords: []string{"game", "play"}, handler: HandlerGaming},
		{keywords: []string{"split", "event"}, handler: HandlerUtility},
	}
	h.registerTools()
	return h
}

// Prefs exposes the preference store for the owning handler's tests.
func (h *SocialHandler) Prefs() *session.PreferenceStore { return h.prefs }

// Handle serves the feed fast path and defers preference edits to the
// language model with the tools bound.
func (h *SocialHandler) Handle(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	content := strings.ToLower(msg.Content)

	if containsKeyword(content, "news") || containsKeyword(content, "feed") || containsKeyword(content, "digest") {
		result, err := h.callTool(ctx, agentCtx, "get_feed", map[string]any{})
		if err != nil {
			return h.respondOrFail(err)
		}
		items := result.([]feed.ContentItem)
		return core.NewResponse(h.name, describeFeed(items)), nil
	}

	return h.complete(ctx, msg, agentCtx)
}

func (h *SocialHandler) registerTools() {
	h.registerTool(tool.NewFunctionTool(
		"set_interests",
		"Replace the calling user's content interest topics.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"interests": map[string]any{"type": "array", "description": "Interest topics, e.g. defi, gaming"},
			},
			"required": []string{"interests"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return h.prefs.SetInterests(tc.Caller.UserID, toStringSlice(args["interests"])), nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"set_notifications",
		"Update the calling user's notification flags.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"daily":   map[string]any{"type": "boolean", "description": "Receive the daily digest"},
				"mention": map[string]any{"type": "boolean", "description": "Receive mention alerts"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			current := h.prefs.Get(tc.Caller.UserID)
			daily := current.NotifyDaily
			mention := current.NotifyMention
			if v, ok := args["daily"].(bool); ok {
				daily = v
			}
			if v, ok := args["mention"].(bool); ok {
				mention = v
			}
			return h.prefs.SetNotifications(tc.Caller.UserID, daily, mention), nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"get_preferences",
		"Get the calling user's interests and notification flags.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			return h.prefs.Get(tc.Caller.UserID), nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"get_feed",
		"Fetch curated content items matching the calling user's interests.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{"type": "integer", "description": "Maximum items to return, default 5"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			limit := defaultFeedLimit
			if l, ok := args["limit"].(float64); ok && l > 0 {
				limit = int(l)
			}
			interests := h.prefs.Get(tc.Caller.UserID).Interests

			cctx, cancel := context.WithTimeout(tc.Context, h.fetchTimeout)
			defer cancel()
			items, err := h.provider.Fetch(cctx, interests, limit)
			if err != nil {
				return nil, core.NewExternalActionError("fetch_feed", "the content feed is unavailable", err)
			}
			return items, nil
		},
	))
}

// describeFeed renders fetched items for chat.
func describeFeed(items []feed.ContentItem) string {
	if len(items) == 0 {
		return "Nothing new for your interests right now. Try broadening them with set_interests."
	}
	var b strings.Builder
	b.WriteString("Here's your feed:")
	for _, item := range items {
		fmt.Fprintf(&b, "\n- %s (%s) %s", item.Title, item.Topic, item.URL)
	}
	return b.String()
}
