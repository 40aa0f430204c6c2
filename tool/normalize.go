package tool

import (
	"github.com/studymesh/studymesh/core"
)

// FieldMapping associates a canonical session-state key with the source
// field names an external service may use for it. The first present source
// wins; alternates exist because connectors disagree on spelling (a
// conversion service may return "content" or "content_markdown" for the same
// payload).
type FieldMapping struct {
	Canonical string
	Sources   []string
}

// Normalizer bridges heterogeneous tool results into session state. It
// recognizes a closed set of fields tied to the tool's declared purpose and
// writes each present field under its canonical key. Everything else is
// ignored, so services may add fields without breaking consumers.
//
// Normalization is a side channel: Apply always hands the original result
// back unchanged and never fails. A result that is not structured (or not
// decodable) produces zero state writes.
type Normalizer struct {
	purpose string
	fields  []FieldMapping
}

// NewNormalizer constructs a Normalizer for a tool purpose with its
// recognized field mappings.
func NewNormalizer(purpose string, fields ...FieldMapping) *Normalizer {
	return &Normalizer{purpose: purpose, fields: fields}
}

// Purpose returns the tool purpose this normalizer serves.
func (n *Normalizer) Purpose() string { return n.purpose }

// Apply decodes raw, writes recognized fields into the session state via the
// tool context, and returns raw unchanged. Overwrites are last-writer-wins;
// the runner applies the accumulated delta atomically per invocation.
func (n *Normalizer) Apply(toolCtx *core.ToolContext, raw any) any {
	writes := n.Recognize(Decode(raw))
	if len(writes) == 0 {
		return raw
	}

	for k, v := range writes {
		toolCtx.SetState(k, v)
	}

	toolCtx.LogDebug("tool.normalize.applied", "purpose", n.purpose, "keys", len(writes))

	return raw
}

// Recognize extracts the canonical writes a decoded result would produce
// without touching any state. Missing fields are skipped; unrecognized
// fields are ignored.
func (n *Normalizer) Recognize(res Result) map[string]any {
	if res.Kind != ResultStructured {
		return nil
	}

	writes := map[string]any{}
	for _, fm := range n.fields {
		for _, src := range fm.Sources {
			v, ok := res.Structured[src]
			if !ok || v == nil {
				continue
			}
			writes[fm.Canonical] = v
			break
		}
	}

	return writes
}

// normalizedTool routes every call of the wrapped tool through a Normalizer
// before returning to the caller.
type normalizedTool struct {
	Tool
	norm *Normalizer
}

// Normalized wraps a tool so each successful invocation is normalized into
// session state. Invocation failures propagate untouched; normalization
// itself can only degrade to a no-op, never abort the call.
func Normalized(t Tool, n *Normalizer) Tool {
	return &normalizedTool{Tool: t, norm: n}
}

func (w *normalizedTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	result, err := w.Tool.Call(toolCtx, args)
	if err != nil {
		return nil, err
	}

	return w.norm.Apply(toolCtx, result), nil
}
