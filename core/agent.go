package core

// Agent defines the core interface that all agents in StudyMesh must implement.
//
// Agents are the primary processing units. They receive input through a
// RunContext, process it, and emit events to communicate results and state
// changes back to the runner.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext
//   - Manage hierarchy through the sub-agent methods
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts and
// events. Name is the external identifier; Type categorizes the
// implementation (e.g. "root", "specialist").
type AgentInfo struct{ Name, Type string }
