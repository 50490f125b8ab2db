package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/chain"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/tool"
)

// metaKeyWallet is the AgentContext metadata key carrying the conversation's
// payout wallet address.
const metaKeyWallet = "wallet_address"

// poolAddress receives share payments when no wallet is attached to the
// conversation.
const poolAddress = "0xchatmeshpool000000000000000000000000000"

var eventRe = regexp.MustCompile(`(?i)(?:plan|organize)\s+(?:an?\s+)?(.+?)\s*(?:event|party|meetup)`)

// UtilityHandler owns the event-plan and payment-split stores. It answers
// expense splitting, share payments and event organization.
type UtilityHandler struct {
	baseHandler
	events *session.EventStore
	splits *session.SplitStore
	actor  chain.Actor

	chainTimeout time.Duration

	mu        sync.Mutex
	lastSplit map[string]string // conversation id -> most recent split id
	lastEvent map[string]string // conversation id -> most recent event id
}

// NewUtilityHandler constructs the utility handler with fresh stores.
func NewUtilityHandler(completer model.Completer, actor chain.Actor, logger logging.Logger) *UtilityHandler {
	h := &UtilityHandler{
		baseHandler: newBaseHandler(
			HandlerUtility,
			"Splits expenses, tracks share payments and organizes group events.",
			"You are the utility assistant of a group chat. You help split expenses, settle payments and plan events. Use your tools for any mutation.",
			completer,
			logger,
		),
		events:       session.NewEventStore(),
		splits:       session.NewSplitStore(),
		actor:        actor,
		chainTimeout: 10 * time.Second,
		lastSplit:    make(map[string]string),
		lastEvent:    make(map[string]string),
	}
	h.keywords = []string{"split", "owes", "owe", "pay", "paid", "settle", "expense", "budget", "event", "plan", "organize", "bill"}
	h.hints = []hint{
		{keywords: []string{"trade", "swap", "price", "token"}, handler: HandlerTrading},
		{keywords: []string{"game", "play", "bet"}, handler: HandlerGaming},
		{keywords: []string{"app", "launch"}, handler: HandlerMiniApp},
		{keywords: []string{"news", "feed"}, handler: HandlerSocial},
	}
	h.registerTools()
	return h
}

// Events exposes the event store for the owning handler's tests.
func (h *UtilityHandler) Events() *session.EventStore { return h.events }

// Splits exposes the split store for the owning handler's tests.
func (h *UtilityHandler) Splits() *session.SplitStore { return h.splits }

// Handle tries the split, payment and event fast paths before falling back
// to the language model.
func (h *UtilityHandler) Handle(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	content := strings.ToLower(msg.Content)

	if total, participants, ok := parseSplitRequest(msg.Content); ok {
		args := map[string]any{
			"total":        total,
			"participants": toAnySlice(participants),
		}
		result, err := h.callTool(ctx, agentCtx, "create_payment_split", args)
		if err != nil {
			return h.respondOrFail(err)
		}
		split := result.(*session.PaymentSplit)
		return core.NewResponse(h.name, describeSplit(split)), nil
	}

	if strings.Contains(content, "paid") && (strings.Contains(content, "i ") || strings.HasPrefix(content, "paid")) {
		result, err := h.callTool(ctx, agentCtx, "pay_share", map[string]any{})
		if err != nil {
			return h.respondOrFail(err)
		}
		split := result.(*session.PaymentSplit)
		return core.NewResponse(h.name,
			fmt.Sprintf("Marked %s as paid. Split is now %s.", strings.ToLower(msg.SenderID), split.Status)), nil
	}

	if m := eventRe.FindStringSubmatch(msg.Content); m != nil {
		title := strings.TrimSpace(m[1])
		if title == "" {
			title = "Group event"
		}
		result, err := h.callTool(ctx, agentCtx, "create_event", map[string]any{"title": title})
		if err != nil {
			return h.respondOrFail(err)
		}
		plan := result.(*session.EventPlan)
		return core.NewResponse(h.name,
			fmt.Sprintf("Started planning %q (event %s). Add expenses or confirm when ready.", plan.Title, plan.ID)), nil
	}

	return h.complete(ctx, msg, agentCtx)
}

// registerTools wires the utility tool set.
func (h *UtilityHandler) registerTools() {
	h.registerTool(tool.NewFunctionTool(
		"create_payment_split",
		"Create a payment split across participants. Method is equal unless amounts or percentages are given.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"total":        map[string]any{"type": "number", "description": "Total amount to split"},
				"currency":     map[string]any{"type": "string", "description": "Currency code, default USD"},
				"participants": map[string]any{"type": "array", "description": "Participant names"},
				"amounts":      map[string]any{"type": "object", "description": "Custom per-participant amounts"},
				"percentages":  map[string]any{"type": "object", "description": "Per-participant percentages"},
			},
			"required": []string{"total"},
		},
		h.createSplit,
	))

	h.registerTool(tool.NewFunctionTool(
		"pay_share",
		"Pay the caller's share of a split: transfers the owed amount on chain, then marks the share paid.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"split_id":    map[string]any{"type": "string", "description": "Split id; defaults to the conversation's latest split"},
				"participant": map[string]any{"type": "string", "description": "Participant to mark paid; defaults to the caller"},
			},
		},
		h.payShare,
	))

	h.registerTool(tool.NewFunctionTool(
		"get_split_status",
		"Get the status and per-participant shares of a payment split.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"split_id": map[string]any{"type": "string", "description": "Split id; defaults to the conversation's latest split"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveSplitID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.splits.Get(id)
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"create_event",
		"Start planning a group event.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":        map[string]any{"type": "string"},
				"location":     map[string]any{"type": "string"},
				"budget":       map[string]any{"type": "number"},
				"participants": map[string]any{"type": "array"},
			},
			"required": []string{"title"},
		},
		h.createEvent,
	))

	h.registerTool(tool.NewFunctionTool(
		"add_expense",
		"Record an expense against an event's budget.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id":    map[string]any{"type": "string", "description": "Event id; defaults to the conversation's latest event"},
				"description": map[string]any{"type": "string"},
				"amount":      map[string]any{"type": "number"},
			},
			"required": []string{"description", "amount"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveEventID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.events.AddExpense(id, tc.Caller.UserID, args["description"].(string), args["amount"].(float64))
		},
	))

	h.registerTool(tool.NewFunctionTool(
		"confirm_event",
		"Confirm a planned event, locking in schedule and location.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_id": map[string]any{"type": "string", "description": "Event id; defaults to the conversation's latest event"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			id, err := h.resolveEventID(tc, args)
			if err != nil {
				return nil, err
			}
			return h.events.Transition(id, tc.Caller.UserID, session.EventConfirmed)
		},
	))
}

// createSplit dispatches to the right split method based on the arguments.
func (h *UtilityHandler) createSplit(tc *core.ToolContext, args map[string]any) (any, error) {
	total, _ := args["total"].(float64)
	currency, _ := args["currency"].(string)

	var split *session.PaymentSplit
	var err error
	switch {
	case args["amounts"] != nil:
		split, err = h.splits.CreateCustom(total, currency, toFloatMap(args["amounts"]))
	case args["percentages"] != nil:
		split, err = h.splits.CreatePercentage(total, currency, toFloatMap(args["percentages"]))
	default:
		split, err = h.splits.CreateEqual(total, currency, toStringSlice(args["participants"]))
	}
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.lastSplit[tc.Caller.ConversationID] = split.ID
	h.mu.Unlock()
	return split, nil
}

// payShare performs the on-chain transfer first and only marks the share
// paid once the transfer succeeded. A timed-out or failed transfer leaves
// the paid flag untouched.
func (h *UtilityHandler) payShare(tc *core.ToolContext, args map[string]any) (any, error) {
	id, err := h.resolveSplitID(tc, args)
	if err != nil {
		return nil, err
	}
	participant, _ := args["participant"].(string)
	if participant == "" {
		participant = strings.ToLower(tc.Caller.UserID)
	}

	split, err := h.splits.Get(id)
	if err != nil {
		return nil, err
	}
	var owed float64
	found := false
	for _, share := range split.Shares {
		if strings.EqualFold(share.Participant, participant) {
			owed = share.Owed
			found = true
			break
		}
	}
	if !found {
		return nil, core.NewValidationError("participant", participant+" is not part of this split")
	}

	to, ok := tc.Caller.Meta(metaKeyWallet)
	if !ok {
		to = poolAddress
	}

	cctx, cancel := context.WithTimeout(tc.Context, h.chainTimeout)
	defer cancel()
	txRef, err := h.actor.Transfer(cctx, to, owed, split.Currency)
	if err != nil {
		reason := "the transfer could not be completed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "the transfer timed out"
		}
		return nil, core.NewExternalActionError("transfer", reason, err)
	}

	updated, err := h.splits.MarkPaid(id, tc.Caller.UserID, participant)
	if err != nil {
		return nil, err
	}
	h.logger.Info("utility.share_paid", "split", id, "participant", participant, "tx", string(txRef))
	return updated, nil
}

// createEvent stores a new plan and remembers it as the conversation's
// latest event.
func (h *UtilityHandler) createEvent(tc *core.ToolContext, args map[string]any) (any, error) {
	title, _ := args["title"].(string)
	location, _ := args["location"].(string)
	budget, _ := args["budget"].(float64)

	plan, err := h.events.Create(title, location, time.Time{}, toStringSlice(args["participants"]), budget, tc.Caller.UserID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.lastEvent[tc.Caller.ConversationID] = plan.ID
	h.mu.Unlock()
	return plan, nil
}

// resolveSplitID returns the explicit split_id argument or the
// conversation's most recent split.
func (h *UtilityHandler) resolveSplitID(tc *core.ToolContext, args map[string]any) (string, error) {
	if id, ok := args["split_id"].(string); ok && id != "" {
		return id, nil
	}
	h.mu.Lock()
	id, ok := h.lastSplit[tc.Caller.ConversationID]
	h.mu.Unlock()
	if !ok {
		return "", core.NewNotFoundError("split", "for this conversation")
	}
	return id, nil
}

// resolveEventID returns the explicit event_id argument or the
// conversation's most recent event.
func (h *UtilityHandler) resolveEventID(tc *core.ToolContext, args map[string]any) (string, error) {
	if id, ok := args["event_id"].(string); ok && id != "" {
		return id, nil
	}
	h.mu.Lock()
	id, ok := h.lastEvent[tc.Caller.ConversationID]
	h.mu.Unlock()
	if !ok {
		return "", core.NewNotFoundError("event", "for this conversation")
	}
	return id, nil
}

// describeSplit renders a split summary for chat.
func describeSplit(split *session.PaymentSplit) string {
	names := make([]string, len(split.Shares))
	for i, s := range split.Shares {
		names[i] = s.Participant
	}
	if split.Method == session.SplitEqual {
		return fmt.Sprintf("Split %.2f %s equally between %s: each owes %.2f (split %s).",
			split.Total, split.Currency, strings.Join(names, ", "), split.Shares[0].Owed, split.ID)
	}
	parts := make([]string, len(split.Shares))
	for i, s := range split.Shares {
		parts[i] = fmt.Sprintf("%s %.2f", s.Participant, s.Owed)
	}
	return fmt.Sprintf("Split %.2f %s (%s): %s (split %s).",
		split.Total, split.Currency, split.Method, strings.Join(parts, ", "), split.ID)
}

// toAnySlice converts strings to the []any shape tool schemas expect.
func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// toStringSlice accepts both []any (JSON-decoded) and []string arguments.
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// toFloatMap accepts a JSON-decoded object of numbers.
func toFloatMap(v any) map[string]float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, e := range m {
		switch n := e.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		}
	}
	return out
}
