package flow

// MultiAgentFlow orchestrates an agent that may perform tool calls and hand
// off control to sub-agents, enabling hierarchical delegation. It extends
// BaseFlow with the transfer tool injector so the model can request handoffs.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a new multi-agent flow with default processors.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	// Advertise transfer_to_agent dynamically when applicable.
	baseFlow.AddRequestProcessor(NewTransferToolInjector())

	return &MultiAgentFlow{BaseFlow: baseFlow}
}
