package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/logging"
	"github.com/studymesh/studymesh/session"
	"github.com/studymesh/studymesh/tool"
)

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	store := session.NewInMemoryStore()
	sess, err := store.Create("sess-1", "")
	require.NoError(t, err)

	runCtx := core.NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		core.AgentInfo{Name: "search_agent"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "query"}}},
		10,
		nil, nil,
		sess, store,
		logging.NoOpLogger{},
	)
	return core.NewToolContext(runCtx, "call-1")
}

func TestSearch_Success(t *testing.T) {
	var gotAuth, gotQuery, gotCount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		gotCount = r.URL.Query().Get("count")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"Water cycle","url":"https://example.com/water","snippet":"Evaporation and condensation."}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func(o *Options) {
		o.APIKey = "test-key"
		o.MaxResults = 3
	})

	hits, err := c.Search(context.Background(), "water cycle")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Water cycle", hits[0].Title)
	assert.Equal(t, "https://example.com/water", hits[0].URL)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "water cycle", gotQuery)
	assert.Equal(t, "3", gotCount)
}

func TestSearch_RetriesTransientServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"ok","url":"https://example.com","snippet":"s"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	hits, err := c.Search(context.Background(), "retry me")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSearch_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.Search(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestSearch_MalformedResponseIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.Search(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode search response")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSearchTool_NormalizesResultsIntoState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"title":"A","url":"https://a","snippet":"a"},{"title":"B","url":"https://b","snippet":"b"}]}`))
	}))
	defer srv.Close()

	n := tool.NewNormalizer("search", tool.FieldMapping{Canonical: "results", Sources: []string{"results", "hits"}})
	st := NewSearchTool(NewClient(srv.URL), n)

	assert.Equal(t, "web_search", st.Name())

	toolCtx := newToolContext(t)
	raw, err := st.Call(toolCtx, map[string]any{"query": "anything"})
	require.NoError(t, err)

	payload, ok := raw.(map[string]any)
	require.True(t, ok)
	assert.Len(t, payload["results"], 2)

	bridged, ok := toolCtx.GetState("results")
	require.True(t, ok, "normalizer should bridge results into state")
	assert.Len(t, bridged, 2)
	require.NotNil(t, toolCtx.Actions().StateDelta)
	assert.Contains(t, toolCtx.Actions().StateDelta, "results")
}

func TestSearchTool_ErrorSkipsNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := tool.NewNormalizer("search", tool.FieldMapping{Canonical: "results", Sources: []string{"results"}})
	st := NewSearchTool(NewClient(srv.URL), n)

	toolCtx := newToolContext(t)
	_, err := st.Call(toolCtx, map[string]any{"query": "anything"})
	require.Error(t, err)

	_, ok := toolCtx.GetState("results")
	assert.False(t, ok)
}
