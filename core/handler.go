package core

import "context"

// HandlerMaster is the name of the distinguished master handler. It is the
// default target of SuggestNext and the final fallback of every dispatch.
const HandlerMaster = "master"

// Handler defines the contract every specialized responder (including the
// master) implements.
//
// Implementations must:
//   - Keep ShouldHandle fast and side-effect free; it is a heuristic gate
//     queried for every inbound message, not a classifier
//   - Mutate only their own session stores inside Handle
//   - Respect context cancellation on blocking external calls
//   - Return typed errors from the core taxonomy; anything else is treated
//     as an internal failure by the router
type Handler interface {
	// Name returns the unique registry name of this handler.
	Name() string

	// Description returns a human-readable description of the handler's
	// purpose, surfaced by the health endpoint and the master's help text.
	Description() string

	// ShouldHandle reports whether this handler is relevant for the message.
	// Implementations are keyword/phrase membership tests against the
	// lowercased message content.
	ShouldHandle(msg InboundMessage, agentCtx *AgentContext) bool

	// Handle performs the handler's substantive processing: intent-specific
	// fast paths first, then the opaque language-model fallback with the
	// handler's tool set bound.
	Handle(ctx context.Context, msg InboundMessage, agentCtx *AgentContext) (*AgentResponse, error)

	// SuggestNext returns the name of the handler most likely relevant if
	// this one is a poor fit. The value is advisory only; the router caps
	// re-dispatch at a single hop. Returns HandlerMaster when no better
	// candidate exists.
	SuggestNext(msg InboundMessage, agentCtx *AgentContext) string

	// Tools returns the handler's tool set keyed by tool name. Only the
	// handler whose Handle is invoked may call its own tools.
	Tools() map[string]Tool
}
