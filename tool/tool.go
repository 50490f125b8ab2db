// Package tool implements the function / tool calling subsystem that lets
// handlers expose structured capabilities (session operations, wallet calls,
// data lookups) with schema validated arguments and consistent error handling.
package tool

import (
	"fmt"
	"sort"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
)

// Error represents a failure during tool execution with a stable code for
// categorization. The underlying typed error (validation, not-found,
// external action) remains reachable via errors.As through Unwrap.
type Error struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // "VALIDATION_ERROR", "EXECUTION_ERROR", ...
	Err     error  `json:"-"`       // Underlying cause, if any
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a tool Error with the specified details.
func NewError(tool, message, code string) *Error {
	return &Error{Tool: tool, Message: message, Code: code}
}

// Specs converts a handler tool set into the model.ToolSpec list bound to a
// completion call, sorted by name so requests are reproducible.
func Specs(tools map[string]core.Tool) []model.ToolSpec {
	out := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, model.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
