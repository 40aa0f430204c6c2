package agent

import (
	"encoding/json"
	"fmt"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/flow"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/tool"
)

// ModelAgentOptions configures a ModelAgent instance. Use functional options
// with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Description overrides the generated agent description. Coordinators
	// surface it when advertising delegation targets.
	Description string

	// Instruction is the system prompt source (static or provider-backed).
	Instruction Instruction

	// EnableStreaming requests partial response chunks from the model.
	EnableStreaming bool

	// OutputKey, when set, saves the agent's final response text into session
	// state under this key.
	OutputKey string

	// OutputSchema declares the agent's output contract: a JSON-schema-like
	// object the decoded terminal payload is checked against. Violations are
	// logged, never fatal.
	OutputSchema map[string]any

	// MaxHistoryMessages bounds conversation history in model requests.
	MaxHistoryMessages int

	// AllowTransfer enables structured handoff to other agents in the graph.
	AllowTransfer bool

	// Tools is the initial tool registry.
	Tools map[string]tool.Tool
}

// ModelAgent integrates a reasoning service with the delegation graph. It
// supports instruction templating, function calling with registered tools,
// streaming responses, declared output contracts and structured handoff to
// sibling agents.
//
// ModelAgent embeds BaseAgent for identity and hierarchy management and
// executes through the flow package.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	outputKey          string
	outputSchema       map[string]any
	maxHistoryMessages int
	allowTransfer      bool
}

// NewModelAgent creates a model-backed agent with sensible defaults:
// streaming off, a 20-message history window and transfer enabled.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		MaxHistoryMessages: 20,
		AllowTransfer:      true,
		Tools:              make(map[string]tool.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		outputKey:          opts.OutputKey,
		outputSchema:       opts.OutputSchema,
		maxHistoryMessages: opts.MaxHistoryMessages,
		allowTransfer:      opts.AllowTransfer,
		tools:              opts.Tools,
	}

	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}

	if a.allowTransfer {
		transfer := tool.NewTransferToAgentTool()
		a.tools[transfer.Name()] = transfer
	}

	return a
}

// RegisterTool adds a tool to the agent's capability set. Registered tools
// become available for the model to call during conversations.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// HasTool checks if a tool is registered with the agent.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// GetTool retrieves a specific tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// GetName returns the agent's display name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the reasoning-service handle.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the registered tool map.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// GetSubAgents returns the child agents as FlowAgents.
func (a *ModelAgent) GetSubAgents() []flow.FlowAgent {
	subAgents := a.SubAgents()
	flowAgents := make([]flow.FlowAgent, 0, len(subAgents))
	for _, subAgent := range subAgents {
		if flowAgent, ok := subAgent.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, flowAgent)
		}
	}
	return flowAgents
}

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled returns whether the agent may hand off control.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// OutputKey returns the session state key final responses are saved under
// (empty when unset).
func (a *ModelAgent) OutputKey() string { return a.outputKey }

// OutputSchema returns the agent's declared output contract, or nil.
func (a *ModelAgent) OutputSchema() map[string]any { return a.outputSchema }

// MaxHistoryMessages returns the conversation history window size.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions produces the final instruction string (system prompt)
// by resolving static or dynamic instruction sources.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// ExecuteTool deserializes JSON arguments and invokes the named tool,
// returning its result or an error if the tool is unknown.
func (a *ModelAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (any, error) {
	t, exists := a.tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argsMap := make(map[string]any)
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return t.Call(toolCtx, argsMap)
}

// TransferToAgent hands turn control to a named agent. The target is resolved
// against the root of the delegation graph so handoffs can reach siblings,
// not just descendants. The target runs with the same session and emit
// channel; an unknown name or self-handoff is an error that fails the turn.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	if agentName == a.Name() {
		return fmt.Errorf("agent %q cannot transfer to itself", agentName)
	}

	target := rootOf(a).FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent %q not found in delegation graph", agentName)
	}

	runCtx.LogInfo(
		"agent.transfer",
		"from_agent", a.Name(),
		"to_agent", agentName,
		"run", runCtx.RunID,
	)

	targetCtx := runCtx.Clone()
	targetCtx.Agent = core.AgentInfo{Name: agentName, Type: "specialist"}
	targetCtx.Branch = agentName

	return target.Run(targetCtx)
}

// rootOf climbs the parent chain to the root of the delegation graph.
func rootOf(a core.Agent) core.Agent {
	root := a
	for root.Parent() != nil {
		root = root.Parent()
	}
	return root
}

// Run implements core.Agent: it selects an execution flow based on the
// agent's capabilities and streams flow events to the parent run context.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	fl := flow.NewSelector().SelectFlow(a)

	eventChan, err := fl.Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())
		return fmt.Errorf("flow execution failed: %w", err)
	}

	for event := range eventChan {
		if a.outputKey != "" && event.IsFinalResponse() && event.Content != nil {
			if text := event.Content.Text(); text != "" {
				if event.Actions.StateDelta == nil {
					event.Actions.StateDelta = map[string]any{}
				}
				event.Actions.StateDelta[a.outputKey] = text
			}
		}

		select {
		case runCtx.Emit <- event:
		case <-runCtx.Context.Done():
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", runCtx.Context.Err())
			return runCtx.Context.Err()
		}
	}

	runCtx.LogDebug("agent.run.complete", "agent", a.Name())

	return nil
}
