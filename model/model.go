package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// ToolSpec declaratively exposes a callable handler tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized completion input produced by handlers.
type Request struct {
	Instructions string         `json:"instructions"`    // System prompt for the model
	History      []core.Message `json:"history"`         // Bounded recent conversation history
	Input        string         `json:"input"`           // Current user message
	Tools        []ToolSpec     `json:"tools,omitempty"` // Handler tool set bound to this call
}

// Transcript renders the bounded history plus the current input as a plain
// "sender: content" transcript. Adapters that fold the conversation into a
// single provider turn use this shared rendering.
func (r Request) Transcript() string {
	var sb strings.Builder
	for _, m := range r.History {
		sb.WriteString(m.Sender)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString(r.Input)
	return sb.String()
}

// Info contains metadata about a completer implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Completer is the minimal interface handlers use to drive generation. The
// returned text is surfaced verbatim as the response message.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)

	// Info returns information about the completer implementation.
	Info() Info
}

// CompletionError reports a provider failure or timeout during a completion
// call. Handlers convert it into a core.ExternalActionError before it reaches
// the user.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed (%s): %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CompletionError) Unwrap() error { return e.Err }

// NewCompletionError wraps err as a provider completion failure.
func NewCompletionError(provider string, err error) *CompletionError {
	return &CompletionError{Provider: provider, Err: err}
}

// MockCompleter is a lightweight in-memory Completer useful for tests and
// examples. Responses can be canned per input; unseen inputs get a generic
// echo. An optional delay simulates provider latency for timeout tests.
type MockCompleter struct {
	mu        sync.Mutex
	responses map[string]string
	delay     time.Duration
	err       error
	lastReq   *Request
}

// NewMockCompleter constructs a MockCompleter with tool support enabled.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockCompleter) AddResponse(input, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[input] = response
}

// SetDelay makes every completion block for d before returning, honoring
// context cancellation.
func (m *MockCompleter) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetError makes every completion fail with err.
func (m *MockCompleter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// LastRequest returns the most recent request seen, or nil.
func (m *MockCompleter) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.lastReq = &req
	delay := m.delay
	err := m.err
	resp, ok := m.responses[req.Input]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", NewCompletionError("mock", ctx.Err())
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", NewCompletionError("mock", err)
	}
	if !ok {
		resp = fmt.Sprintf("Mock response to: %s", req.Input)
	}
	return resp, nil
}

// Info implements Completer.
func (m *MockCompleter) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}
