package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/studymesh/agent"
	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/logging"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/session"
	"github.com/studymesh/studymesh/tool"
)

// recordingModel captures every request it receives and answers with a fixed
// completion.
type recordingModel struct {
	requests []model.Request
	answer   string
}

func (m *recordingModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.requests = append(m.requests, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	respCh <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: m.answer}}},
		FinishReason: "stop",
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *recordingModel) Info() model.Info {
	return model.Info{Name: "recording", Provider: "mock", SupportsTools: true}
}

func TestAgentTool_ForwardsRequestToWrappedAgent(t *testing.T) {
	rec := &recordingModel{answer: `{"results":[{"title":"Diagram","url":"https://example.org/d"}]}`}
	helper := agent.NewModelAgent("SearchAgent", rec, func(o *agent.ModelAgentOptions) {
		o.AllowTransfer = false
	})

	store := session.NewInMemoryStore()
	_, err := store.Create("sess-1", "")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("sess-1", core.NewUserMessageEvent("run-1", "Summarize this page please")))
	sess, err := store.Get("sess-1")
	require.NoError(t, err)

	runCtx := core.NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		core.AgentInfo{Name: "SummarizerAgent"},
		core.NewUserText("Summarize this page please"),
		10,
		nil, nil,
		sess, store,
		logging.NoOpLogger{},
	)
	toolCtx := core.NewToolContext(runCtx, "call-1")

	out, err := tool.NewAgentTool(helper).Call(toolCtx, map[string]any{
		"request": "find water cycle diagrams",
	})
	require.NoError(t, err)
	assert.Equal(t, rec.answer, out)

	require.Len(t, rec.requests, 1)
	contents := rec.requests[0].Contents
	require.NotEmpty(t, contents)

	// The forwarded request arrives as the newest user message.
	last := contents[len(contents)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "find water cycle diagrams", last.Text())

	// The shared conversation is still visible to the wrapped agent.
	var sawPrior bool
	for _, c := range contents {
		if c.Text() == "Summarize this page please" {
			sawPrior = true
		}
	}
	assert.True(t, sawPrior)

	// The nested run never persists its own events.
	stored, err := store.Get("sess-1")
	require.NoError(t, err)
	assert.Len(t, stored.GetEvents(), 1)
}
