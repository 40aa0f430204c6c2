package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/logging"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/session"
	"github.com/studymesh/studymesh/tool"
)

type mockFlowAgent struct {
	name          string
	llm           model.Model
	tools         map[string]tool.Tool
	subAgents     []FlowAgent
	transfer      bool
	transferredTo string
	transferErr   error
}

func (m *mockFlowAgent) GetName() string           { return m.name }
func (m *mockFlowAgent) GetLLM() model.Model       { return m.llm }
func (m *mockFlowAgent) GetSubAgents() []FlowAgent { return m.subAgents }
func (m *mockFlowAgent) ResolveInstructions(*core.RunContext) (string, error) {
	return "You are a test assistant.", nil
}
func (m *mockFlowAgent) GetTools() map[string]tool.Tool {
	if m.tools == nil {
		return map[string]tool.Tool{}
	}
	return m.tools
}
func (m *mockFlowAgent) IsStreamingEnabled() bool { return false }
func (m *mockFlowAgent) IsTransferEnabled() bool  { return m.transfer }
func (m *mockFlowAgent) MaxHistoryMessages() int  { return 10 }

func (m *mockFlowAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (any, error) {
	impl, ok := m.tools[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}
	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, err
		}
	}
	return impl.Call(toolCtx, argMap)
}

func (m *mockFlowAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	m.transferredTo = agentName
	return m.transferErr
}

func newTestRunContext(t *testing.T) *core.RunContext {
	t.Helper()
	store := session.NewInMemoryStore()
	sess, err := store.Create("test-session", "")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("test-session", core.NewUserMessageEvent("test-run", "test message")))
	return core.NewRunContext(
		context.Background(),
		"test-session", "test-run",
		core.AgentInfo{Name: "test-agent", Type: "test"},
		core.NewUserText("test message"),
		0,
		make(chan core.Event, 10), nil,
		sess, store,
		logging.NoOpLogger{},
	)
}

func collectEvents(t *testing.T, ch <-chan core.Event) []core.Event {
	t.Helper()
	var events []core.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestSingleAgentFlow_Answer(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	llm.AddResponse("test message", "Hello! This is a test response.")

	agent := &mockFlowAgent{name: "test-agent", llm: llm}
	runCtx := newTestRunContext(t)

	f := NewSingleAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	require.NoError(t, err)

	events := collectEvents(t, eventChan)
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	assert.True(t, final.IsFinalResponse())
	assert.Equal(t, "Hello! This is a test response.", final.Content.Text())
	assert.NotNil(t, final.TurnComplete)
}

func TestBaseFlow_ToolLoop(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	llm.AddFunctionCalls("test message", core.FunctionCall{
		ID:        "call-1",
		Name:      "lookup",
		Arguments: `{"query":"go"}`,
	})

	lookup := tool.NewFunctionTool("lookup", "Looks things up",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{"answer": "found"}, nil
		},
	)

	agent := &mockFlowAgent{
		name:  "test-agent",
		llm:   llm,
		tools: map[string]tool.Tool{"lookup": lookup},
	}
	runCtx := newTestRunContext(t)

	f := NewSingleAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	require.NoError(t, err)

	events := collectEvents(t, eventChan)

	var sawCall, sawResponse bool
	for _, ev := range events {
		if len(ev.GetFunctionCalls()) > 0 {
			sawCall = true
		}
		for _, fr := range ev.GetFunctionResponses() {
			sawResponse = true
			assert.Equal(t, "lookup", fr.Name)
			assert.Equal(t, "call-1", fr.ID)
		}
	}
	assert.True(t, sawCall, "expected a function call event")
	assert.True(t, sawResponse, "expected a function response event")
	assert.True(t, events[len(events)-1].IsFinalResponse())
}

func TestBaseFlow_DelegatesOnToolAction(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	llm.AddFunctionCalls("test message", core.FunctionCall{
		ID:        "call-1",
		Name:      "transfer_to_agent",
		Arguments: `{"agent_name":"search_agent"}`,
	})

	agent := &mockFlowAgent{
		name:      "coordinator",
		llm:       llm,
		transfer:  true,
		subAgents: []FlowAgent{&mockFlowAgent{name: "search_agent"}},
		tools:     map[string]tool.Tool{"transfer_to_agent": tool.NewTransferToAgentTool()},
	}
	runCtx := newTestRunContext(t)

	f := NewMultiAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	require.NoError(t, err)

	collectEvents(t, eventChan)

	assert.Equal(t, "search_agent", agent.transferredTo)
}

func TestBaseFlow_UnknownDelegationTargetSurfacesError(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	llm.AddFunctionCalls("test message", core.FunctionCall{
		ID:        "call-1",
		Name:      "transfer_to_agent",
		Arguments: `{"agent_name":"nope"}`,
	})

	agent := &mockFlowAgent{
		name:        "coordinator",
		llm:         llm,
		transfer:    true,
		subAgents:   []FlowAgent{&mockFlowAgent{name: "search_agent"}},
		tools:       map[string]tool.Tool{"transfer_to_agent": tool.NewTransferToAgentTool()},
		transferErr: fmt.Errorf("agent 'nope' not found in delegation graph"),
	}
	runCtx := newTestRunContext(t)

	f := NewMultiAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	require.NoError(t, err)

	events := collectEvents(t, eventChan)

	var sawError bool
	for _, ev := range events {
		if ev.ErrorMessage != nil {
			sawError = true
			assert.Contains(t, *ev.ErrorMessage, "not found")
		}
	}
	assert.True(t, sawError, "expected an error event for the unknown target")
}

func TestBaseFlow_ModelErrorEmitsErrorEvent(t *testing.T) {
	agent := &mockFlowAgent{name: "test-agent", llm: model.NewMockModel("test-model", "mock")}
	runCtx := newTestRunContext(t)
	runCtx.Session = nil
	runCtx.SessionStore = nil
	runCtx.UserContent = core.Content{}

	f := NewSingleAgentFlow(agent)
	eventChan, err := f.Execute(runCtx)
	require.NoError(t, err)

	events := collectEvents(t, eventChan)
	require.NotEmpty(t, events)
	assert.NotNil(t, events[len(events)-1].ErrorMessage)
}
