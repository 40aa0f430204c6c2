package flow

import (
	"fmt"
	"strings"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/model"
)

// transferToolName is the reserved function name used for handoff requests.
const transferToolName = "transfer_to_agent"

// TransferToolInjector exposes the transfer_to_agent function to the model
// when the agent may hand off control and has sub-agents to hand off to. The
// definition is injected at request build time so the advertised target list
// always reflects the current delegation graph.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest injects the transfer_to_agent tool definition. It is a no-op
// when transfer is disabled, no sub-agents exist, or the definition is already
// present.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == transferToolName {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sub := range subAgents {
		names = append(names, sub.GetName())
	}

	enum := make([]any, len(names))
	for i, n := range names {
		enum[i] = n
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        transferToolName,
			Description: fmt.Sprintf("Hand off the conversation to a specialist agent. Available agents: %s", strings.Join(names, ", ")),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent_name": map[string]any{
						"type":        "string",
						"description": "Name of the agent to hand off to",
						"enum":        enum,
					},
				},
				"required": []string{"agent_name"},
			},
		},
	})

	runCtx.LogDebug("flow.transfer_tool.injected", "agent", agent.GetName(), "targets", strings.Join(names, ","))

	return nil
}
