package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
)

// fallbackText is the safe response used when a handler fails and the master
// itself cannot produce a better answer.
const fallbackText = "Sorry, I couldn't process that right now. Please try again."

// Master is the distinguished routing handler. It holds the registry of
// specialized handlers, selects one per message in registration order and
// performs the one-hop hand-off protocol. It is also a handler itself: the
// fallback for messages no specialist claims.
type Master struct {
	baseHandler

	mu       sync.RWMutex
	order    []string
	handlers map[string]core.Handler

	failureHook func(handler string)
}

// NewMaster constructs an empty master router.
func NewMaster(completer model.Completer, logger logging.Logger) *Master {
	m := &Master{
		baseHandler: newBaseHandler(
			core.HandlerMaster,
			"Routes messages to specialized handlers and answers general questions.",
			"You are the general assistant of a group chat. Answer helpfully and briefly. Specialized requests (payments, trading, games, apps, feeds) are handled elsewhere; just answer what you can.",
			completer,
			logger,
		),
		handlers: make(map[string]core.Handler),
	}
	return m
}

// Register adds a handler to the registry. Registration order determines
// selection priority and is fixed for the process lifetime.
func (m *Master) Register(h core.Handler) error {
	name := h.Name()
	if name == "" || name == core.HandlerMaster {
		return core.NewValidationError("name", "handler name must be non-empty and not 'master'")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[name]; exists {
		return core.NewValidationError("name", "handler '"+name+"' already registered")
	}
	m.handlers[name] = h
	m.order = append(m.order, name)
	m.logger.Info("master.handler_registered", "handler", name, "position", len(m.order))
	return nil
}

// Handlers returns the registered handlers in registration order.
func (m *Master) Handlers() []core.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Handler, len(m.order))
	for i, name := range m.order {
		out[i] = m.handlers[name]
	}
	return out
}

// SetFailureHook registers a callback invoked with the handler name whenever
// a dispatch to that handler fails and the fallback path runs.
func (m *Master) SetFailureHook(fn func(handler string)) { m.failureHook = fn }

// handler looks up a registered handler by name.
func (m *Master) handler(name string) core.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers[name]
}

// ShouldHandle always claims the message; the master is the fallback.
func (m *Master) ShouldHandle(core.InboundMessage, *core.AgentContext) bool { return true }

// Handle answers help and status questions directly and sends everything
// else to the language model without tools.
func (m *Master) Handle(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	if resp := m.fastPath(msg); resp != nil {
		return resp, nil
	}
	return m.complete(ctx, msg, agentCtx)
}

// fastPath answers help and status questions without the language model,
// returning nil when the message is neither.
func (m *Master) fastPath(msg core.InboundMessage) *core.AgentResponse {
	content := strings.ToLower(msg.Content)

	if containsKeyword(content, "help") || strings.Contains(content, "what can you do") {
		return core.NewResponse(m.name, m.describeCapabilities())
	}
	if containsKeyword(content, "status") {
		m.mu.RLock()
		n := len(m.order)
		m.mu.RUnlock()
		return core.NewResponse(m.name, fmt.Sprintf("All good: %d handlers registered and routing.", n))
	}
	return nil
}

// Route dispatches one message: select a handler in registration order,
// invoke it with panic containment, follow at most one hand-off hop and
// degrade to a safe fallback on failure. Messages no handler claims go
// through the unclaimed path: master fast paths, then the suggestion scan,
// then the master's language model. Route never returns an error; the caller
// always gets a response.
func (m *Master) Route(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) *core.AgentResponse {
	target := m.selectHandler(msg, agentCtx)
	if target == nil {
		return m.routeUnclaimed(ctx, msg, agentCtx)
	}
	m.logger.Debug("master.route", "handler", target.Name(), "conversation", agentCtx.ConversationID)

	resp, err := m.safeHandle(ctx, target, msg, agentCtx)
	if err != nil {
		return m.recoverResponse(ctx, target, msg, agentCtx, err)
	}

	// One-hop hand-off: an explicit suggestion in the response metadata is
	// followed exactly once; the hop's own suggestions are surfaced but not
	// followed.
	if next, ok := resp.Metadata[core.MetaSuggestedHandler]; ok && next != target.Name() {
		if nh := m.handler(next); nh != nil {
			m.logger.Debug("master.handoff", "from", target.Name(), "to", next)
			hopResp, hopErr := m.safeHandle(ctx, nh, msg, agentCtx)
			if hopErr != nil {
				return m.recoverResponse(ctx, nh, msg, agentCtx, hopErr)
			}
			if again, ok := hopResp.Metadata[core.MetaSuggestedHandler]; ok && again != nh.Name() {
				m.logger.Debug("master.handoff.capped", "from", nh.Name(), "to", again)
			}
			return hopResp
		}
		m.logger.Warn("master.handoff.unknown_handler", "suggested", next)
	}

	// Attach the advisory suggest-next hint when the handler did not set one.
	if _, ok := resp.Metadata[core.MetaSuggestedHandler]; !ok {
		if suggestion := target.SuggestNext(msg, agentCtx); suggestion != target.Name() {
			resp.SetMeta(core.MetaSuggestedHandler, suggestion)
		}
	}
	return resp
}

// routeUnclaimed handles a message no specialist claims: the master's fast
// paths run first, then the registry is scanned for a suggestion and the
// first registered non-master suggestion gets a single dispatch hop, and
// finally the master answers through the language model.
func (m *Master) routeUnclaimed(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) *core.AgentResponse {
	if resp := m.fastPath(msg); resp != nil {
		return resp
	}

	for _, h := range m.Handlers() {
		next := h.SuggestNext(msg, agentCtx)
		if next == core.HandlerMaster {
			continue
		}
		nh := m.handler(next)
		if nh == nil {
			m.logger.Warn("master.suggestion.unknown_handler", "from", h.Name(), "suggested", next)
			continue
		}

		m.logger.Debug("master.suggestion", "from", h.Name(), "to", next, "conversation", agentCtx.ConversationID)
		resp, err := m.safeHandle(ctx, nh, msg, agentCtx)
		if err != nil {
			return m.recoverResponse(ctx, nh, msg, agentCtx, err)
		}
		if again, ok := resp.Metadata[core.MetaSuggestedHandler]; ok && again != nh.Name() {
			m.logger.Debug("master.handoff.capped", "from", nh.Name(), "to", again)
		}
		return resp
	}

	m.logger.Debug("master.route", "handler", core.HandlerMaster, "conversation", agentCtx.ConversationID)
	resp, err := m.safeHandle(ctx, m, msg, agentCtx)
	if err != nil {
		return m.recoverResponse(ctx, m, msg, agentCtx, err)
	}
	return resp
}

// selectHandler scans the registry in registration order and returns the
// first handler claiming the message, or nil when none does.
func (m *Master) selectHandler(msg core.InboundMessage, agentCtx *core.AgentContext) core.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		if m.handlers[name].ShouldHandle(msg, agentCtx) {
			return m.handlers[name]
		}
	}
	return nil
}

// safeHandle invokes the handler with panic containment. A panicking handler
// is converted to an internal error; it never takes the dispatch loop down.
func (m *Master) safeHandle(ctx context.Context, h core.Handler, msg core.InboundMessage, agentCtx *core.AgentContext) (resp *core.AgentResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("master.handler_panic", "handler", h.Name(), "panic", fmt.Sprint(r))
			resp = nil
			err = &core.InternalError{Handler: h.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	resp, err = h.Handle(ctx, msg, agentCtx)
	if err != nil {
		if !core.IsUserFacing(err) {
			err = &core.InternalError{Handler: h.Name(), Err: err}
		}
		return nil, err
	}
	if resp == nil {
		return nil, &core.InternalError{Handler: h.Name(), Err: fmt.Errorf("nil response without error")}
	}
	return resp, nil
}

// recoverResponse degrades a failed dispatch to a usable response: the
// master answers in place of a failed specialist, and a static fallback
// covers the case where the master itself fails.
func (m *Master) recoverResponse(ctx context.Context, failed core.Handler, msg core.InboundMessage, agentCtx *core.AgentContext, err error) *core.AgentResponse {
	m.logger.Error("master.handler_failed", "handler", failed.Name(), "error", err.Error())

	// Rejections are part of normal operation; only real failures count.
	if core.IsUserFacing(err) {
		if resp := m.userFacingResponse(err); resp != nil {
			resp.Handler = failed.Name()
			return resp
		}
	}
	if m.failureHook != nil {
		m.failureHook(failed.Name())
	}

	if failed.Name() != core.HandlerMaster {
		if resp, mErr := m.safeHandle(ctx, m, msg, agentCtx); mErr == nil {
			return resp
		}
	}
	return core.NewResponse(core.HandlerMaster, fallbackText)
}

// describeCapabilities renders the handler registry for a help request.
func (m *Master) describeCapabilities() string {
	var b strings.Builder
	b.WriteString("Here's what I can help with:")
	for _, h := range m.Handlers() {
		fmt.Fprintf(&b, "\n- %s: %s", h.Name(), h.Description())
	}
	b.WriteString("\nJust ask in plain words and I'll route it.")
	return b.String()
}
