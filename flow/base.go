package flow

import (
	"fmt"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/model"
)

// BaseFlow drives a request -> model -> (optional tool loop) cycle with
// pluggable pre/post processors. Each model step produces a Decision; the
// flow loop keeps stepping while tool responses need another model turn and
// terminates on a final answer or a delegation handoff.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a flow around the given agent with a default parallel
// function executor (order-preserving).
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; registration order defines
// execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model
// chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor overrides the tool execution strategy.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	if executor != nil {
		f.executor = executor
	}
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a terminal decision is reached or an
// unrecoverable error occurs. Callers should range over the returned channel.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for {
			decision, err := f.runOnce(runCtx, eventChan)
			if err != nil {
				f.emitError(runCtx, eventChan, err)
				return
			}
			if decision == nil {
				return
			}

			switch decision.Kind {
			case DecisionInvoke:
				// Tool responses were emitted; the model consumes them on
				// the next step.
				continue
			case DecisionDelegate:
				runCtx.LogInfo(
					"flow.delegate",
					"agent", f.agent.GetName(),
					"target", decision.Target,
				)
				if err := f.agent.TransferToAgent(runCtx, decision.Target); err != nil {
					f.emitError(runCtx, eventChan, err)
				}
				return
			default:
				return
			}
		}
	}()

	return eventChan, nil
}

// emitError surfaces an internal error as a system event so callers observing
// the event stream always learn why a turn ended.
func (f *BaseFlow) emitError(runCtx *core.RunContext, eventChan chan<- core.Event, err error) {
	runCtx.LogError("flow.error", "agent", f.agent.GetName(), "error", err.Error())

	ev := core.NewEvent(runCtx.RunID, "system")
	msg := err.Error()
	ev.ErrorMessage = &msg

	select {
	case <-runCtx.Context.Done():
	case eventChan <- ev:
	}
}

// runOnce performs one model step (including any tool executions) and returns
// the resulting Decision. A nil Decision with nil error signals that the model
// stream ended without a usable response.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) (*Decision, error) {
	// Refresh the session snapshot so request processors see the latest
	// conversation, including just-persisted tool responses.
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			return nil, fmt.Errorf("session refresh failed: %w", err)
		}
	}

	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	if tools := f.agent.GetTools(); len(tools) > 0 {
		defs := make([]model.ToolDefinition, 0, len(tools))
		for _, t := range tools {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = append(req.Tools, defs...)
	}

	req.Stream = f.agent.IsStreamingEnabled()

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			return nil, err
		}
	}

	llm := f.agent.GetLLM()
	if llm == nil {
		return nil, fmt.Errorf("agent %s has no model configured", f.agent.GetName())
	}

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var (
		lastEvent *core.Event
		fnCalls   []core.FunctionCall
	)

loop:
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return nil, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial

			calls := ev.GetFunctionCalls()
			if !resp.Partial && len(calls) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			lastEvent = &ev

			select {
			case <-runCtx.Context.Done():
				return nil, runCtx.Context.Err()
			case eventChan <- ev:
			}

			// Wait for persistence of non-partial events so follow-up
			// requests read a consistent session.
			if !ev.IsPartial() {
				if err := waitResume(runCtx); err != nil {
					return nil, err
				}
			}

			if len(calls) > 0 {
				fnCalls = append(fnCalls, calls...)
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return nil, fmt.Errorf("model generation failed: %w", err)
			}
			break loop
		case <-runCtx.Context.Done():
			return nil, runCtx.Context.Err()
		}
	}

	if len(fnCalls) == 0 {
		if lastEvent == nil {
			return nil, nil
		}
		return &Decision{Kind: DecisionAnswer, Event: lastEvent}, nil
	}

	// Execute pending tool calls. The emit callback forwards each response
	// event, synchronizes with persistence and records any handoff signal a
	// tool attached to its event actions.
	var transferTarget string

	f.executor.Execute(runCtx, f.agent, fnCalls, func(ev core.Event) error {
		lastEvent = &ev

		select {
		case <-runCtx.Context.Done():
			return runCtx.Context.Err()
		case eventChan <- ev:
		}

		if ev.Actions.TransferToAgent != nil {
			transferTarget = *ev.Actions.TransferToAgent
		}

		return waitResume(runCtx)
	})

	if transferTarget != "" {
		return &Decision{Kind: DecisionDelegate, Target: transferTarget, Event: lastEvent}, nil
	}

	return &Decision{Kind: DecisionInvoke, Event: lastEvent}, nil
}

// waitResume blocks until the runner confirms persistence of the previously
// emitted event, honoring cancellation. A nil Resume channel disables the
// synchronization (used by tests and nested executions).
func waitResume(runCtx *core.RunContext) error {
	if runCtx.Resume == nil {
		return nil
	}

	select {
	case <-runCtx.Context.Done():
		return runCtx.Context.Err()
	case <-runCtx.Resume:
		return nil
	}
}
