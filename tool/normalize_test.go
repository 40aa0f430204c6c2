package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studymesh/studymesh/core"
)

func newConversionNormalizer() *Normalizer {
	return NewNormalizer("conversion",
		FieldMapping{Canonical: "content_markdown", Sources: []string{"content_markdown", "content"}},
		FieldMapping{Canonical: "metadata", Sources: []string{"metadata"}},
	)
}

func TestNormalizer_ApplyWritesRecognizedFields(t *testing.T) {
	n := newConversionNormalizer()
	toolCtx := newTestToolContext(t)

	raw := map[string]any{
		"content_markdown": "# The Water Cycle",
		"metadata":         map[string]any{"title": "The Water Cycle"},
		"debug_timings":    map[string]any{"fetch_ms": 12},
	}

	out := n.Apply(toolCtx, raw)

	// The original result is always handed back unchanged.
	assert.Equal(t, raw, out)

	v, ok := toolCtx.GetState("content_markdown")
	assert.True(t, ok)
	assert.Equal(t, "# The Water Cycle", v)

	_, ok = toolCtx.GetState("metadata")
	assert.True(t, ok)

	// Unrecognized fields never leak into state.
	_, ok = toolCtx.GetState("debug_timings")
	assert.False(t, ok)
}

func TestNormalizer_AlternateSpellingFirstPresentWins(t *testing.T) {
	n := newConversionNormalizer()

	writes := n.Recognize(Decode(map[string]any{"content": "plain content"}))
	assert.Equal(t, "plain content", writes["content_markdown"])

	// When both spellings are present the canonical source listed first wins.
	writes = n.Recognize(Decode(map[string]any{
		"content_markdown": "preferred",
		"content":          "ignored",
	}))
	assert.Equal(t, "preferred", writes["content_markdown"])
}

func TestNormalizer_TextResultProducesZeroWrites(t *testing.T) {
	n := newConversionNormalizer()
	toolCtx := newTestToolContext(t)

	out := n.Apply(toolCtx, "free text answer, not an object")

	assert.Equal(t, "free text answer, not an object", out)
	assert.Empty(t, toolCtx.Actions().StateDelta)
}

func TestNormalizer_NilFieldSkipped(t *testing.T) {
	n := newConversionNormalizer()

	writes := n.Recognize(Decode(map[string]any{"content_markdown": nil, "metadata": map[string]any{}}))
	assert.NotContains(t, writes, "content_markdown")
	assert.Contains(t, writes, "metadata")
}

func TestNormalizer_RepeatedApplySecondResultWins(t *testing.T) {
	n := newConversionNormalizer()
	toolCtx := newTestToolContext(t)

	n.Apply(toolCtx, map[string]any{"content_markdown": "# First pass"})
	n.Apply(toolCtx, map[string]any{
		"content_markdown": "# Second pass",
		"metadata":         map[string]any{"title": "v2"},
	})

	v, ok := toolCtx.GetState("content_markdown")
	assert.True(t, ok)
	assert.Equal(t, "# Second pass", v)
	assert.Equal(t, "# Second pass", toolCtx.Actions().StateDelta["content_markdown"])

	// The overwrite carries through to the session once the deltas land.
	sess := core.NewSession("sess-repeat")
	sess.ApplyStateDelta(map[string]any{"content_markdown": "# First pass"})
	sess.ApplyStateDelta(toolCtx.Actions().StateDelta)
	stored, _ := sess.GetState("content_markdown")
	assert.Equal(t, "# Second pass", stored)
}

func TestNormalized_WrapperBridgesOnSuccessOnly(t *testing.T) {
	n := NewNormalizer("search", FieldMapping{Canonical: "results", Sources: []string{"results"}})

	okTool := NewFunctionTool("ok", "ok", map[string]any{"type": "object"},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return map[string]any{"results": []any{"hit"}}, nil
		})

	toolCtx := newTestToolContext(t)
	out, err := Normalized(okTool, n).Call(toolCtx, map[string]any{})
	assert.NoError(t, err)
	assert.NotNil(t, out)

	v, ok := toolCtx.GetState("results")
	assert.True(t, ok)
	assert.Len(t, v, 1)

	failTool := NewFunctionTool("fail", "fail", map[string]any{"type": "object"},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, &ToolError{Tool: "fail", Message: "boom", Code: "EXECUTION_ERROR"}
		})

	failCtx := newTestToolContext(t)
	_, err = Normalized(failTool, n).Call(failCtx, map[string]any{})
	assert.Error(t, err)
	assert.Empty(t, failCtx.Actions().StateDelta)
}
