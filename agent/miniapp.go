package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/tool"
)

// AppInfo describes one launchable mini-app in the catalog.
type AppInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// defaultCatalog is the built-in mini-app catalog.
func defaultCatalog() []AppInfo {
	return []AppInfo{
		{ID: "poll", Description: "Create a group poll and collect votes"},
		{ID: "countdown", Description: "Shared countdown timer for group deadlines"},
		{ID: "wordle", Description: "Cooperative daily word puzzle"},
	}
}

// MiniAppHandler owns the mini-app session store and the app catalog.
type MiniAppHandler struct {
	baseHandler
	apps    *session.MiniAppStore
	catalog []AppInfo

	mu          sync.Mutex
	lastSession map[string]string // conversation id -> most recent app session id
}

// NewMiniAppHandler constructs the mini-app handler with the built-in
// catalog.
func NewMiniAppHandler(completer model.Completer, logger logging.Logger) *MiniAppHandler {
	h := &MiniAppHandler{
		baseHandler: newBaseHandler(
			HandlerMiniApp,
			"Launches shared mini-apps and relays interactions with their session state.",
			"You are the mini-app assistant of a group chat. You launch apps from the catalog and apply interactions through your tools.",
			completer,
			logger,
		),
		apps:        session.NewMiniAppStore(),
		catalog:     defaultCatalog(),
		lastSession: make(map[string]string),
	}
	h.keywords = []string{"app", "apps", "launch", "open", "poll", "countdown", "wordle", "vote"}
	h.hints = []hint{
		{keywords: []string{"game", "play", "score"}, handler: HandlerGaming},
		{keywords: []string{"split", "event"}, handler: HandlerUtility},
	}
	h.registerTools()
	return h
}

// Apps exposes the session store for the owning handler's tests.
func (h *MiniAppHandler) Apps() *session.MiniAppStore { return h.apps }

// Handle covers the launch and list fast paths, falling back to the language
// model otherwise.
func (h *MiniAppHandler) Handle(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	content := strings.ToLower(msg.Content)

	if appID, participants, ok := parseAppRequest(msg.Content); ok && h.known(appID) {
		args := map[string]any{"app_id": appID}
		if len(participants) > 0 {
			args["participants"] = toAnySlice(participants)
		}
		result, err := h.callTool(ctx, agentCtx, "launch_app", args)
		if err != nil {
			return h.respondOrFail(err)
		}
		sess := result.(*session.MiniAppSession)
		return core.NewResponse(h.name,
			fmt.Sprintf("Launched %s for %s (session %s).",
				sess.AppID, strings.Join(sess.Participants, ", "), sess.ID)), nil
	}

	if strings.Contains(content, "apps") || strings.Contains(content, "what can") {
		result, err := h.callTool(ctx, agentCtx, "list_apps", map[string]any{})
		if err != nil {
			return h.respondOrFail(err)
		}
		return core.NewResponse(h.name, describeCatalog(result.([]AppInfo))), nil
	}

	return h.complete(ctx, msg, agentCtx)
}

// known reports whether the app id is in the catalog.
func (h *MiniAppHandler) known(appID string) bool {
	for _, a := range h.catalog {
		if a.ID == appID {
			return true
		}
	}
	return false
}

func (h *MiniAppHandler) registerTools() {
	h.registerTool(tool.NewFunctionTool(
		"list_apps",
		"List the launchable mini-apps.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			out := append([]AppInfo(nil), h.catalog...)
			sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
			return out, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"launch_app",
		"Launch a mini-app session for the given participants.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"app_id":       map[string]any{"type": "string", "description": "Catalog app id"},
				"participants": map[string]any{"type": "array", "description": "Participant names besides the caller"},
			},
			"required": []string{"app_id"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			appID := strings.ToLower(args["app_id"].(string))
			if !h.known(appID) {
				return nil, core.NewNotFoundError("app", appID)
			}
			sess, err := h.apps.Launch(appID, toStringSlice(args["participants"]), tc.Caller.UserID)
			if err != nil {
				return nil, err
			}
			h.mu.Lock()
			h.lastSession[tc.Caller.ConversationID] = sess.ID
			h.mu.Unlock()
			return sess, nil
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"interact_app",
		"Apply a state change to a running mini-app session.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string", "description": "Session id; defaults to the conversation's latest session"},
				"state":      map[string]any{"type": "object", "description": "State keys to merge into the session"},
			},
			"required": []string{"state"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveSessionID(tc, args)
			if err != nil {
				return nil, err
			}
			delta, _ := args["state"].(map[string]any)
			return h.apps.Interact(id, tc.Caller.UserID, delta)
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"close_app",
		"Close a running mini-app session.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{"type": "string", "description": "Session id; defaults to the conversation's latest session"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveSessionID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.apps.Close(id, tc.Caller.UserID)
		},
	))
}

// resolveSessionID returns the explicit session_id argument or the
// conversation's most recent app session.
func (h *MiniAppHandler) resolveSessionID(tc *core.ToolContext, args map[string]any) (string, error) {
	if id, ok := args["session_id"].(string); ok && id != "" {
		return id, nil
	}
	h.mu.Lock()
	id, ok := h.lastSession[tc.Caller.ConversationID]
	h.mu.Unlock()
	if !ok {
		return "", core.NewNotFoundError("app session", "for this conversation")
	}
	return id, nil
}

// describeCatalog renders the app catalog for chat.
func describeCatalog(apps []AppInfo) string {
	var b strings.Builder
	b.WriteString("Available apps:")
	for _, a := range apps {
		fmt.Fprintf(&b, "\n- %s: %s", a.ID, a.Description)
	}
	return b.String()
}
