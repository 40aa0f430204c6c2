package flow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/tool"
)

func slowEchoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "echo",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"v": map[string]any{"type": "string"}},
			"required":   []string{"v"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return args["v"], nil
		},
	)
}

func TestParallelFunctionExecutor_PreservesOrder(t *testing.T) {
	agent := &mockFlowAgent{
		name: "exec-agent",
		tools: map[string]tool.Tool{
			"echo_a": slowEchoTool("echo_a"),
			"echo_b": slowEchoTool("echo_b"),
			"echo_c": slowEchoTool("echo_c"),
		},
	}
	runCtx := newTestRunContext(t)

	calls := []core.FunctionCall{
		{ID: "1", Name: "echo_a", Arguments: `{"v":"a"}`},
		{ID: "2", Name: "echo_b", Arguments: `{"v":"b"}`},
		{ID: "3", Name: "echo_c", Arguments: `{"v":"c"}`},
	}

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true})

	var emitted []core.Event
	exec.Execute(runCtx, agent, calls, func(ev core.Event) error {
		emitted = append(emitted, ev)
		return nil
	})

	require.Len(t, emitted, 3)
	for i, want := range []string{"1", "2", "3"} {
		responses := emitted[i].GetFunctionResponses()
		require.Len(t, responses, 1)
		assert.Equal(t, want, responses[0].ID)
	}
}

func TestParallelFunctionExecutor_RecoversPanics(t *testing.T) {
	panicking := tool.NewFunctionTool("boom", "always panics",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			panic("kaboom")
		},
	)
	agent := &mockFlowAgent{
		name:  "exec-agent",
		tools: map[string]tool.Tool{"boom": panicking},
	}
	runCtx := newTestRunContext(t)

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})

	var emitted []core.Event
	exec.Execute(runCtx, agent, []core.FunctionCall{{ID: "1", Name: "boom"}}, func(ev core.Event) error {
		emitted = append(emitted, ev)
		return nil
	})

	require.Len(t, emitted, 1)
	responses := emitted[0].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "panic")
}

func TestParallelFunctionExecutor_AppliesToolActions(t *testing.T) {
	writer := tool.NewFunctionTool("note", "writes state",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.SetState("results", "done")
			return "ok", nil
		},
	)
	agent := &mockFlowAgent{
		name:  "exec-agent",
		tools: map[string]tool.Tool{"note": writer},
	}
	runCtx := newTestRunContext(t)

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})

	var emitted []core.Event
	exec.Execute(runCtx, agent, []core.FunctionCall{{ID: "1", Name: "note"}}, func(ev core.Event) error {
		emitted = append(emitted, ev)
		return nil
	})

	require.Len(t, emitted, 1)
	assert.Equal(t, "done", emitted[0].Actions.StateDelta["results"])
}

func TestParallelFunctionExecutor_UnknownTool(t *testing.T) {
	agent := &mockFlowAgent{name: "exec-agent", tools: map[string]tool.Tool{}}
	runCtx := newTestRunContext(t)

	exec := NewParallelFunctionExecutor(FunctionExecutorConfig{})

	var emitted []core.Event
	exec.Execute(runCtx, agent, []core.FunctionCall{{ID: "1", Name: "missing"}}, func(ev core.Event) error {
		emitted = append(emitted, ev)
		return nil
	})

	require.Len(t, emitted, 1)
	responses := emitted[0].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, fmt.Sprintf("tool %s not found", "missing"), responses[0].Error)
}
