package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	t.Run("json object string decodes structured", func(t *testing.T) {
		res := Decode(`{"results": [{"title": "A"}], "count": 1}`)
		assert.Equal(t, ResultStructured, res.Kind)
		assert.Contains(t, res.Structured, "results")
	})

	t.Run("plain text stays text", func(t *testing.T) {
		res := Decode("just some prose, not JSON")
		assert.Equal(t, ResultText, res.Kind)
		assert.Equal(t, "just some prose, not JSON", res.Text)
	})

	t.Run("malformed json degrades to text", func(t *testing.T) {
		res := Decode(`{"broken": `)
		assert.Equal(t, ResultText, res.Kind)
	})

	t.Run("map passes through", func(t *testing.T) {
		res := Decode(map[string]any{"content_markdown": "# Notes"})
		assert.Equal(t, ResultStructured, res.Kind)
		assert.Equal(t, "# Notes", res.Structured["content_markdown"])
	})

	t.Run("raw message decodes", func(t *testing.T) {
		res := Decode(json.RawMessage(`{"a":1}`))
		assert.Equal(t, ResultStructured, res.Kind)
	})

	t.Run("struct goes through marshal", func(t *testing.T) {
		type payload struct {
			Title string `json:"title"`
		}
		res := Decode(payload{Title: "Water"})
		assert.Equal(t, ResultStructured, res.Kind)
		assert.Equal(t, "Water", res.Structured["title"])
	})

	t.Run("nil yields empty text", func(t *testing.T) {
		res := Decode(nil)
		assert.Equal(t, ResultText, res.Kind)
		assert.True(t, res.IsEmpty())
	})
}

func TestResult_IsEmpty(t *testing.T) {
	assert.True(t, Decode("   ").IsEmpty())
	assert.True(t, Decode(map[string]any{}).IsEmpty())
	assert.False(t, Decode("content").IsEmpty())
	assert.False(t, Decode(map[string]any{"k": nil}).IsEmpty())
}

func TestResult_Field(t *testing.T) {
	res := Decode(map[string]any{"metadata": map[string]any{"title": "T"}})
	v, ok := res.Field("metadata")
	assert.True(t, ok)
	assert.NotNil(t, v)

	_, ok = Decode("text").Field("metadata")
	assert.False(t, ok)
}
