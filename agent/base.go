package agent

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/tool"
)

// Handler names as registered with the master. The registry is a fixed
// startup-time list; these are not discovered dynamically.
const (
	HandlerUtility = "utility"
	HandlerTrading = "trading"
	HandlerGaming  = "gaming"
	HandlerSocial  = "social"
	HandlerMiniApp = "miniapp"
)

// defaultCompletionTimeout bounds every language-model call so a hung
// provider cannot stall a conversation worker.
const defaultCompletionTimeout = 30 * time.Second

// hint is one entry of a handler's ordered suggest-next table.
type hint struct {
	keywords []string
	handler  string
}

// baseHandler bundles the pieces shared by every concrete handler: identity,
// the keyword gate, the advisory suggest-next table, the bound completer and
// the tool registry. Embed it and supply Handle.
type baseHandler struct {
	name         string
	description  string
	instructions string // System prompt for the LLM fallback
	keywords     []string
	hints        []hint
	completer    model.Completer
	timeout      time.Duration
	tools        map[string]core.Tool
	logger       logging.Logger
}

// newBaseHandler constructs the shared handler state with safe defaults.
func newBaseHandler(name, description, instructions string, completer model.Completer, logger logging.Logger) baseHandler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return baseHandler{
		name:         name,
		description:  description,
		instructions: instructions,
		completer:    completer,
		timeout:      defaultCompletionTimeout,
		tools:        make(map[string]core.Tool),
		logger:       logger,
	}
}

// Name returns the registry name of this handler.
func (b *baseHandler) Name() string { return b.name }

// Description returns the handler's purpose description.
func (b *baseHandler) Description() string { return b.description }

// Tools returns the handler's tool set keyed by tool name.
func (b *baseHandler) Tools() map[string]core.Tool { return b.tools }

// registerTool adds a tool to the handler's capability set.
func (b *baseHandler) registerTool(t core.Tool) { b.tools[t.Name()] = t }

// ShouldHandle is a keyword/phrase membership test against the lowercased
// message content. It is intentionally cheap and approximate: a heuristic
// gate, not a classifier.
func (b *baseHandler) ShouldHandle(msg core.InboundMessage, _ *core.AgentContext) bool {
	content := strings.ToLower(msg.Content)
	for _, kw := range b.keywords {
		if containsKeyword(content, kw) {
			return true
		}
	}
	return false
}

// SuggestNext walks the handler's ordered hint table and returns the first
// matching handler name, defaulting to the master. The value is advisory
// only; the router caps re-dispatch at one hop.
func (b *baseHandler) SuggestNext(msg core.InboundMessage, _ *core.AgentContext) string {
	content := strings.ToLower(msg.Content)
	for _, h := range b.hints {
		for _, kw := range h.keywords {
			if containsKeyword(content, kw) {
				return h.handler
			}
		}
	}
	return core.HandlerMaster
}

// complete performs the opaque language-model fallback with the handler's
// tool set bound, wrapped with the completion timeout. The completion text
// is returned verbatim as the response message.
func (b *baseHandler) complete(ctx context.Context, msg core.InboundMessage, agentCtx *core.AgentContext) (*core.AgentResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	text, err := b.completer.Complete(cctx, model.Request{
		Instructions: b.instructions,
		History:      agentCtx.History,
		Input:        msg.Content,
		Tools:        tool.Specs(b.tools),
	})
	if err != nil {
		b.logger.Warn("handler.complete.failed", "handler", b.name, "error", err.Error())
		reason := "the language model provider failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "the language model request timed out"
		}
		return nil, core.NewExternalActionError("complete", reason, err)
	}

	b.logger.Debug("handler.complete.success", "handler", b.name, "duration_ms", time.Since(start).Milliseconds())
	return core.NewResponse(b.name, text), nil
}

// callTool invokes one of the handler's own tools, running fast paths through
// the same schema validation the model's function calls get.
func (b *baseHandler) callTool(ctx context.Context, agentCtx *core.AgentContext, name string, args map[string]any) (any, error) {
	t, ok := b.tools[name]
	if !ok {
		return nil, core.NewNotFoundError("tool", name)
	}
	tc := core.NewToolContext(ctx, agentCtx, core.NewID(), b.logger)
	return t.Call(tc, args)
}

// userFacingResponse converts a taxonomy error into a clear rejection
// response attributed to the handler, or returns nil when the error is not
// safe to surface (the caller then propagates it as an internal failure).
func (b *baseHandler) userFacingResponse(err error) *core.AgentResponse {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return core.NewResponse(b.name, "That doesn't work: "+ve.Message)
	}
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		return core.NewResponse(b.name, "Sorry, I couldn't find that "+nf.Kind+".")
	}
	var ee *core.ExternalActionError
	if errors.As(err, &ee) {
		return core.NewResponse(b.name, "The "+ee.Action+" action failed: "+ee.Reason+". Nothing was applied; please try again.")
	}
	return nil
}

// respondOrFail is the common tail of a fast path: user-facing errors become
// rejection responses, anything else propagates to the router as internal.
func (b *baseHandler) respondOrFail(err error) (*core.AgentResponse, error) {
	if resp := b.userFacingResponse(err); resp != nil {
		return resp, nil
	}
	return nil, err
}

// containsKeyword reports whether content contains kw. Single-word keywords
// match on word boundaries so "app" does not fire inside "happy"; phrases
// use substring containment.
func containsKeyword(content, kw string) bool {
	if strings.ContainsRune(kw, ' ') {
		return strings.Contains(content, kw)
	}
	start := 0
	for {
		idx := strings.Index(content[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		beforeOK := idx == 0 || !isWordRune(rune(content[idx-1]))
		afterOK := end == len(content) || !isWordRune(rune(content[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

// isWordRune reports whether r continues a word.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
