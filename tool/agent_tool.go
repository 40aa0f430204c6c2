package tool

import (
	"fmt"
	"strings"

	"github.com/studymesh/studymesh/core"
)

// AgentToolOptions configures an AgentTool instance.
type AgentToolOptions struct {
	// Normalizer bridges the wrapped agent's final answer into session state.
	// Nil disables normalization (the raw answer is still returned).
	Normalizer *Normalizer
	// EventBufferSize sets channel buffering for the nested run.
	EventBufferSize int
}

// AgentTool exposes an agent as an invocable capability so it can appear in
// another agent's tool list and be invoked uniformly. Each call runs the
// wrapped agent to completion inside a child run context working on a
// snapshot of the session with the request appended as the newest user
// message, returns the agent's final text answer, and routes it through the
// configured Normalizer on the way out. State writes from the nested run are
// forwarded onto the invoking tool context.
//
// The tool itself is stateless; every invocation is independent.
type AgentTool struct {
	agent core.Agent
	opts  AgentToolOptions
}

// NewAgentTool wraps an agent as a tool.
func NewAgentTool(a core.Agent, optFns ...func(o *AgentToolOptions)) *AgentTool {
	opts := AgentToolOptions{
		EventBufferSize: 100,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &AgentTool{agent: a, opts: opts}
}

// Name returns the wrapped agent's name in snake_case tool form.
func (t *AgentTool) Name() string {
	return strings.ToLower(strings.ReplaceAll(t.agent.Name(), " ", "_"))
}

// Description returns the wrapped agent's description.
func (t *AgentTool) Description() string { return t.agent.Description() }

// Parameters declares the single free-form request argument.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "The request to forward to the agent",
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the wrapped agent to completion and returns its final answer. A
// run failure surfaces as *ToolError (EXECUTION_ERROR) so callers can apply
// fallback policy; normalization issues only degrade, they never abort the
// invocation.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	request, _ := args["request"].(string)
	if request == "" {
		return nil, &ToolError{Tool: t.Name(), Message: "missing required field 'request'", Code: "VALIDATION_ERROR"}
	}

	parent := toolCtx.InternalRunContext()

	childEmit := make(chan core.Event, t.opts.EventBufferSize)
	childCtx := parent.NewChildContext(childEmit, nil, t.agent.Name())
	childCtx.Agent = core.AgentInfo{Name: t.agent.Name(), Type: "specialist"}
	childCtx.UserContent = core.NewUserText(request)

	// The child runs on a detached session snapshot with the forwarded
	// request appended as the newest user message, so the wrapped agent
	// answers the request itself, not just the surrounding conversation.
	// Detaching also keeps the nested run from persisting its own events;
	// state writes travel back through the invoking tool context below.
	snapshot := core.NewSession(parent.SessionID)
	if parent.Session != nil {
		snapshot = parent.Session.Clone()
	}
	snapshot.AddEvent(core.NewUserMessageEvent(parent.RunID, request))
	childCtx.Session = snapshot
	childCtx.SessionStore = nil

	runErrCh := make(chan error, 1)
	go func() {
		defer close(childEmit)
		runErrCh <- t.agent.Run(childCtx)
	}()

	var final *core.Event
	for ev := range childEmit {
		// Child state writes ride along on the invoking tool context so the
		// runner applies them atomically with this invocation's response.
		for k, v := range ev.Actions.StateDelta {
			toolCtx.SetState(k, v)
		}

		if ev.Content != nil && ev.Content.Role == "assistant" && !ev.IsPartial() {
			final = &ev
		}
	}

	if err := <-runErrCh; err != nil {
		return nil, &ToolError{
			Tool:    t.Name(),
			Message: fmt.Sprintf("agent %s failed: %v", t.agent.Name(), err),
			Code:    "EXECUTION_ERROR",
		}
	}

	var answer string
	if final != nil {
		answer = final.Content.Text()
	}

	if t.opts.Normalizer != nil {
		return t.opts.Normalizer.Apply(toolCtx, answer), nil
	}

	return answer, nil
}
