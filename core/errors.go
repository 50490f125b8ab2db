package core

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input to a tool or session operation, e.g. a
// non-participant trying to vote. It is reported to the user as a clear
// rejection, never retried, and the targeted session is left unchanged.
type ValidationError struct {
	Field   string `json:"field,omitempty"` // Field that failed validation, if attributable
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports an unknown session, handler or app identifier.
type NotFoundError struct {
	Kind string `json:"kind"` // Entity kind, e.g. "game", "split", "handler"
	ID   string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given entity kind and id.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ExternalActionError reports a failed or timed-out external call (blockchain
// action, LLM completion). The triggering session mutation must not have been
// applied; the operation is all-or-nothing around the external call. The core
// never retries automatically.
type ExternalActionError struct {
	Action string // The attempted action, e.g. "transfer", "complete"
	Reason string // Human-readable failure reason surfaced to the user
	Err    error  // Underlying cause, if any
}

func (e *ExternalActionError) Error() string {
	return fmt.Sprintf("external action '%s' failed: %s", e.Action, e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ExternalActionError) Unwrap() error { return e.Err }

// NewExternalActionError wraps err as an external-action failure. A nil err is
// allowed when only a reason string is available.
func NewExternalActionError(action, reason string, err error) *ExternalActionError {
	return &ExternalActionError{Action: action, Reason: reason, Err: err}
}

// InternalError is an unexpected handler failure. It is the only error class
// that crosses the handler/router trust boundary and is always downgraded to
// a safe fallback response before reaching the user.
type InternalError struct {
	Handler string
	Err     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in handler '%s': %v", e.Handler, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InternalError) Unwrap() error { return e.Err }

// IsUserFacing reports whether err belongs to an error class whose message is
// safe to surface verbatim to the user (validation, not-found and external
// action failures). Internal errors are not user facing.
func IsUserFacing(err error) bool {
	var ve *ValidationError
	var nf *NotFoundError
	var ee *ExternalActionError
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ee)
}
