package tool

import (
	"github.com/studymesh/studymesh/core"
)

// FallbackToolOptions configures a FallbackTool instance.
type FallbackToolOptions struct {
	// Recognizer, when set, additionally treats a primary result as unusable
	// if it yields no canonical state writes.
	Recognizer *Normalizer
}

// FallbackTool chains a primary and a fallback capability for the same
// family of requests. The policy is deterministic: the primary is always
// attempted first; the fallback runs only when the primary fails or returns
// an empty or unrecognized result. The primary attempt is never skipped.
type FallbackTool struct {
	name        string
	description string
	primary     Tool
	fallback    Tool
	opts        FallbackToolOptions
}

// NewFallbackTool builds a fallback chain over two tools.
func NewFallbackTool(name, description string, primary, fallback Tool, optFns ...func(o *FallbackToolOptions)) *FallbackTool {
	opts := FallbackToolOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &FallbackTool{name: name, description: description, primary: primary, fallback: fallback, opts: opts}
}

// Name returns the tool identifier.
func (t *FallbackTool) Name() string { return t.name }

// Description returns the tool description.
func (t *FallbackTool) Description() string { return t.description }

// Parameters returns the primary tool's schema; both tools in a chain must
// accept the same argument shape.
func (t *FallbackTool) Parameters() map[string]any { return t.primary.Parameters() }

// Call attempts the primary tool, then the fallback when the primary errored
// or produced nothing usable. If both fail, the fallback's error is returned
// so the caller sees the terminal failure of the chain.
func (t *FallbackTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	result, err := t.primary.Call(toolCtx, args)
	if err == nil && t.usable(result) {
		return result, nil
	}

	if err != nil {
		toolCtx.LogWarn("tool.fallback.primary_failed", "tool", t.name, "primary", t.primary.Name(), "error", err.Error())
	} else {
		toolCtx.LogInfo("tool.fallback.primary_unusable", "tool", t.name, "primary", t.primary.Name())
	}

	result, err = t.fallback.Call(toolCtx, args)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// usable reports whether a primary result ends the chain: it must be
// non-empty and, when a recognizer is configured, produce at least one
// canonical state write.
func (t *FallbackTool) usable(result any) bool {
	decoded := Decode(result)
	if decoded.IsEmpty() {
		return false
	}

	if t.opts.Recognizer == nil {
		return true
	}

	return len(t.opts.Recognizer.Recognize(decoded)) > 0
}
