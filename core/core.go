package core

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single entry in the bounded conversation history carried by an
// AgentContext. Oldest messages come first.
type Message struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// InboundMessage is one decoded conversational message handed to the dispatch
// loop by the messaging transport. It is read-only to handlers.
type InboundMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentContext identifies the acting user and conversation for a single
// dispatch call. It is constructed by the dispatch loop and must be treated
// as immutable by handlers; the history slice is a defensive copy.
type AgentContext struct {
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id"`
	History        []Message         `json:"history,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Meta returns the metadata value for key and whether it was present.
func (c *AgentContext) Meta(key string) (string, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// ActionType categorizes a side-effect intent emitted in a response.
type ActionType string

const (
	// ActionTransaction requests execution of a blockchain transaction by an
	// external collaborator.
	ActionTransaction ActionType = "transaction"
	// ActionNotification requests delivery of an out-of-band notification.
	ActionNotification ActionType = "notification"
)

// Action is a typed side-effect intent attached to an AgentResponse. The
// payload is opaque to the core; it is interpreted by whichever external
// collaborator consumes the action.
type Action struct {
	Type    ActionType     `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// AgentResponse is the output of a dispatch call: response text, the name of
// the handler that produced it, zero or more side-effect actions and optional
// metadata (e.g. a suggested-next-handler hint).
type AgentResponse struct {
	Text     string            `json:"text"`
	Handler  string            `json:"handler"`
	Actions  []Action          `json:"actions,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MetaSuggestedHandler is the response metadata key under which an advisory
// hand-off hint is surfaced.
const MetaSuggestedHandler = "suggested_handler"

// NewResponse creates a text response attributed to the named handler.
func NewResponse(handler, text string) *AgentResponse {
	return &AgentResponse{Text: text, Handler: handler}
}

// AddAction appends a side-effect action and returns the response for chaining.
func (r *AgentResponse) AddAction(t ActionType, payload map[string]any) *AgentResponse {
	r.Actions = append(r.Actions, Action{Type: t, Payload: payload})
	return r
}

// SetMeta sets a metadata key/value pair, allocating the map lazily.
func (r *AgentResponse) SetMeta(key, value string) *AgentResponse {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// NewID generates a new unique identifier for sessions and tool calls.
// Uniqueness is required process-wide; UUIDs satisfy that without coordination.
func NewID() string { return uuid.NewString() }
