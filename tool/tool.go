// Package tool implements the capability subsystem that lets agents invoke
// structured functionality (connectors, computations, other agents) with
// schema validated arguments, consistent error handling and a side-channel
// normalization step that bridges heterogeneous tool results into session
// state.
package tool

import (
	"fmt"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/internal/util"
)

// Tool defines the interface for extending agent capabilities.
//
// Tools can be registered with agents to enable function calling, allowing
// agents to perform actions beyond text generation such as web search,
// document conversion or delegation to other agents.
//
// All tools receive a ToolContext giving access to session state and agent
// flow control (transfer, escalate).
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a proper JSON schema for parameters
//   - Surface genuine invocation failures as errors, never as empty success
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and ToolContext.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
