// Package tool defines the contract tools must satisfy to be invoked
// by the orchestrator, and the registry that binds tool names to
// implementations.
package tool

import (
	"context"
	"fmt"
)

// Descriptor is what the LLM client hands to a provider so the model
// can decide when and how to call a tool.
type Descriptor struct {
	Name           string
	Description    string
	ArgumentSchema map[string]any // JSON Schema
}

// Tool is a synchronous, side-effect-bounded capability the
// orchestrator can invoke on the model's behalf. Invoke must respect
// ctx cancellation: a cancelled tool call should return promptly
// rather than run to completion.
type Tool interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// ErrorCategory classifies a ToolError the same way event.Category
// classifies an orchestrator-level error, but this taxonomy never
// reaches the SSE client directly — a ToolError is caught at dispatch
// and its message becomes Observation text, not an Error event.
type ErrorCategory string

const (
	ErrorMalformedArguments ErrorCategory = "malformed_arguments"
	ErrorExecution          ErrorCategory = "execution"
)

// ToolError is returned by Invoke (or synthesized by the registry
// during argument normalization) when a tool call cannot be completed.
type ToolError struct {
	Category ErrorCategory
	Message  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool: %s: %s", e.Category, e.Message)
}

// FormatError renders a ToolError (or any error) as the stable
// Observation body the orchestrator feeds back to the LLM, so a
// failed call still gives the model enough to reason about next.
func FormatError(err error) string {
	if te, ok := err.(*ToolError); ok {
		return fmt.Sprintf("[error: %s: %s]", te.Category, te.Message)
	}
	return fmt.Sprintf("[error: execution: %s]", err.Error())
}
