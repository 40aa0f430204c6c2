package agent

import (
	"fmt"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/tool"
)

// ValidateTree checks a delegation graph at assembly time. It fails when two
// agents share a display name (names are the routing keys for handoffs) or
// when an agent is reachable from itself. Call it after wiring sub-agents and
// treat any error as a configuration fault.
func ValidateTree(root core.Agent) error {
	if root == nil {
		return fmt.Errorf("delegation graph has no root")
	}

	names := map[string]bool{}
	onPath := map[core.Agent]bool{}

	var visit func(a core.Agent) error
	visit = func(a core.Agent) error {
		if onPath[a] {
			return fmt.Errorf("delegation graph contains a cycle through agent %q", a.Name())
		}

		if names[a.Name()] {
			return fmt.Errorf("duplicate agent name %q in delegation graph", a.Name())
		}
		names[a.Name()] = true

		onPath[a] = true
		for _, child := range a.SubAgents() {
			if err := visit(child); err != nil {
				return err
			}
		}
		delete(onPath, a)

		return nil
	}

	return visit(root)
}

// CloneSpec produces a shallow clone of a ModelAgent descriptor: identity,
// instruction, output contract and configuration are copied, the model handle
// and tool connectors are shared, and the clone starts with no parent and no
// sub-agents. Use it to attach the same specialist definition under multiple
// roots without entangling their graphs.
func CloneSpec(a *ModelAgent) *ModelAgent {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}

	clone := &ModelAgent{
		BaseAgent:          NewBaseAgent(a.Name()),
		llm:                a.llm,
		instruction:        a.instruction,
		enableStreaming:    a.enableStreaming,
		outputKey:          a.outputKey,
		outputSchema:       a.outputSchema,
		maxHistoryMessages: a.maxHistoryMessages,
		allowTransfer:      a.allowTransfer,
		tools:              tools,
	}
	clone.SetDescription(a.Description())

	return clone
}
