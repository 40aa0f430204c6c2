// Package flow provides the execution pipeline for StudyMesh agents.
//
// A flow drives one agent's part of a turn: it assembles the model request
// through pluggable processors, streams model output, executes tool calls and
// surfaces an explicit Decision (answer, delegate, invoke) that the turn
// state machine consumes.
package flow

import (
	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/tool"
)

// Flow defines the interface for agent execution flows.
type Flow interface {
	// Execute runs the flow with the given run context. It returns a channel
	// of events representing execution progress; the channel is closed when
	// the flow reaches a terminal decision or an unrecoverable error.
	Execute(runCtx *core.RunContext) (<-chan core.Event, error)
}

// FlowAgent defines the interface that agents must implement to work with
// flows. It exposes agent capabilities without revealing the concrete agent
// implementation.
type FlowAgent interface {
	// GetName returns the agent's display name.
	GetName() string

	// GetLLM returns the reasoning-service handle.
	GetLLM() model.Model

	// ResolveInstructions produces the agent's instruction text.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// GetSubAgents returns the list of child agents.
	GetSubAgents() []FlowAgent

	// IsStreamingEnabled returns whether streaming responses are enabled.
	IsStreamingEnabled() bool

	// IsTransferEnabled returns whether the agent may hand off control.
	IsTransferEnabled() bool

	// MaxHistoryMessages returns the maximum number of conversation history
	// messages to keep in the model request.
	MaxHistoryMessages() int

	// ExecuteTool executes a named tool with serialized JSON arguments.
	ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (any, error)

	// TransferToAgent hands turn control to a named agent in the delegation
	// graph. An unknown name is an error, never a silent no-op.
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// DecisionKind discriminates the outcome of one model step.
type DecisionKind int

const (
	// DecisionAnswer means the agent produced a terminal message.
	DecisionAnswer DecisionKind = iota
	// DecisionDelegate means the agent handed control to a named agent.
	DecisionDelegate
	// DecisionInvoke means tool calls were executed and another model step
	// is needed to consume their responses.
	DecisionInvoke
)

// Decision is the explicit, discriminated result of a single model step,
// consumed by the flow loop and the turn state machine.
type Decision struct {
	Kind   DecisionKind
	Target string      // delegation target for DecisionDelegate
	Event  *core.Event // last emitted event of the step, may be nil on errors
}

// RequestProcessor processes the request before sending it to the model.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the model request before execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the model.
type ResponseProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessResponse handles the model response before it becomes an event.
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
