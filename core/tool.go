package core

import (
	"context"

	"github.com/hupe1980/chatmesh/logging"
)

// Tool defines a named, schema-validated operation a handler exposes.
//
// Tools are the language-model's callable surface and are also invoked
// directly by a handler's fast paths. Arguments are validated against the
// tool's JSON schema before execution.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a proper JSON schema for parameters
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the LLM
	// so it understands when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with validated arguments. It either returns a
	// JSON-serializable result or fails with a typed error from the core
	// taxonomy.
	Call(toolCtx *ToolContext, args map[string]any) (any, error)
}

// ToolContext scopes a single tool invocation: the cancellable execution
// context, the caller's identity and a correlation id for logging.
type ToolContext struct {
	// Context carries cancellation and deadlines for external calls made by
	// the tool. Never nil.
	Context context.Context

	// Caller identifies the acting user and conversation. Tools use it for
	// participant authorization checks.
	Caller *AgentContext

	// CallID correlates the model's function call request with the tool
	// execution in logs.
	CallID string

	logger logging.Logger
}

// NewToolContext constructs a ToolContext, substituting safe defaults for nil
// context and logger.
func NewToolContext(ctx context.Context, caller *AgentContext, callID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{Context: ctx, Caller: caller, CallID: callID, logger: logger}
}

// Logger returns the logger bound to this invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
