package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/studymesh/agent"
	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/session"
	"github.com/studymesh/studymesh/tool"
)

func drain(t *testing.T, eventsCh <-chan core.Event, errorsCh <-chan error) ([]core.Event, []error) {
	t.Helper()
	var (
		events []core.Event
		errs   []error
	)
	timeout := time.After(5 * time.Second)
	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil {
				errs = append(errs, err)
			}
		case <-timeout:
			t.Fatal("timed out draining runner channels")
		}
	}
	return events, errs
}

func TestRunner_Run(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.AddResponse("hello", "hi there")

	root := agent.NewModelAgent("root", llm, func(o *agent.ModelAgentOptions) {
		o.AllowTransfer = false
	})

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) { o.SessionStore = store })

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "sess-1", core.NewUserText("hello"))
	require.NoError(t, err)

	events, errs := drain(t, eventsCh, errorsCh)
	require.Empty(t, errs)
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	assert.True(t, final.IsFinalResponse())
	assert.Equal(t, "hi there", final.Content.Text())

	// Both the user message and the answer are persisted.
	sess, err := store.Get("sess-1")
	require.NoError(t, err)
	history := sess.GetConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Content.Role)
	assert.Equal(t, "assistant", history[1].Content.Role)
}

func TestRunner_AppliesStateDeltasAtomically(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.AddFunctionCalls("remember this", core.FunctionCall{ID: "c1", Name: "remember"})

	remember := tool.NewFunctionTool("remember", "stores a note",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.SetState("results", []any{"note"})
			tc.SetState("metadata", map[string]any{"source": "test"})
			return "stored", nil
		},
	)

	root := agent.NewModelAgent("root", llm, func(o *agent.ModelAgentOptions) {
		o.AllowTransfer = false
	})
	root.RegisterTool(remember)

	store := session.NewInMemoryStore()
	r := New(root, func(o *Options) { o.SessionStore = store })

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "sess-2", core.NewUserText("remember this"))
	require.NoError(t, err)

	_, errs := drain(t, eventsCh, errorsCh)
	require.Empty(t, errs)

	sess, err := store.Get("sess-2")
	require.NoError(t, err)
	v, ok := sess.GetState("results")
	require.True(t, ok)
	assert.Equal(t, []any{"note"}, v)
	_, ok = sess.GetState("metadata")
	assert.True(t, ok)
}

func TestRunner_DelegationEndToEnd(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.AddFunctionCalls("summarize the water cycle", core.FunctionCall{
		ID:        "c1",
		Name:      "transfer_to_agent",
		Arguments: `{"agent_name":"summarizer"}`,
	})
	// The specialist's model step keys off the persisted transfer response.
	llm.AddResponse(`{"agent":"summarizer","transferred":true}`, `{"summary":"water evaporates and rains back down","key_topics":["evaporation","condensation"]}`)

	summarizer := agent.NewModelAgent("summarizer", llm, func(o *agent.ModelAgentOptions) {
		o.AllowTransfer = false
	})
	root := agent.NewModelAgent("root", llm)
	require.NoError(t, root.SetSubAgents(summarizer))
	require.NoError(t, agent.ValidateTree(root))

	r := New(root)

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "sess-3", core.NewUserText("summarize the water cycle"))
	require.NoError(t, err)

	events, errs := drain(t, eventsCh, errorsCh)
	require.Empty(t, errs)

	var final *core.Event
	for _, ev := range events {
		if ev.IsFinalResponse() {
			final = &ev
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, "summarizer", final.Author)
	assert.Contains(t, final.Content.Text(), "evaporates")
}

func TestRunner_UnknownDelegationTargetFailsTurn(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	llm.AddFunctionCalls("go somewhere", core.FunctionCall{
		ID:        "c1",
		Name:      "transfer_to_agent",
		Arguments: `{"agent_name":"ghost"}`,
	})

	root := agent.NewModelAgent("root", llm)
	require.NoError(t, root.SetSubAgents(agent.NewModelAgent("real", llm)))

	r := New(root)

	_, eventsCh, errorsCh, err := r.Run(context.Background(), "sess-4", core.NewUserText("go somewhere"))
	require.NoError(t, err)

	events, _ := drain(t, eventsCh, errorsCh)

	var sawError bool
	for _, ev := range events {
		if ev.ErrorMessage != nil {
			sawError = true
			assert.Contains(t, *ev.ErrorMessage, "not found in delegation graph")
		}
	}
	assert.True(t, sawError, "expected the unknown target to surface as an error event")
}

func TestRunner_Cancel(t *testing.T) {
	llm := model.NewMockModel("m", "mock")
	root := agent.NewModelAgent("root", llm, func(o *agent.ModelAgentOptions) {
		o.AllowTransfer = false
	})
	r := New(root)

	assert.Error(t, r.Cancel("missing-run"))

	runID, eventsCh, errorsCh, err := r.Run(context.Background(), "sess-5", core.NewUserText("hello"))
	require.NoError(t, err)
	drain(t, eventsCh, errorsCh)

	// The run already completed; its cancel handle is gone.
	assert.Error(t, r.Cancel(runID))
}
