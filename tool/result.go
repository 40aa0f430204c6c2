package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultKind discriminates the two shapes a tool invocation result can take
// after decoding.
type ResultKind int

const (
	// ResultText marks a result that is opaque free text (including text that
	// failed to decode as JSON).
	ResultText ResultKind = iota
	// ResultStructured marks a result that decoded to a JSON object.
	ResultStructured
)

// Result is the tagged union produced by a single decode step over a raw
// tool invocation result. Downstream code matches on Kind instead of doing
// runtime type checks against arbitrary values.
type Result struct {
	Kind       ResultKind
	Text       string
	Structured map[string]any
}

// Decode converts a raw tool invocation result into a Result. Strings and
// byte slices are decoded as JSON when possible; already-structured maps pass
// through; any other value is marshaled through JSON as a last attempt and
// otherwise stringified. Decode never fails: undecodable input simply yields
// a text result.
func Decode(raw any) Result {
	switch v := raw.(type) {
	case nil:
		return Result{Kind: ResultText, Text: ""}
	case string:
		return decodeText(v)
	case []byte:
		return decodeText(string(v))
	case json.RawMessage:
		return decodeText(string(v))
	case map[string]any:
		return Result{Kind: ResultStructured, Structured: v}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Result{Kind: ResultText, Text: fmt.Sprintf("%v", v)}
		}
		res := decodeText(string(data))
		if res.Kind == ResultText {
			res.Text = fmt.Sprintf("%v", v)
		}
		return res
	}
}

func decodeText(text string) Result {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
			return Result{Kind: ResultStructured, Structured: m}
		}
	}
	return Result{Kind: ResultText, Text: text}
}

// IsEmpty reports whether the result carries no usable payload: blank text
// or a structured object with no fields.
func (r Result) IsEmpty() bool {
	if r.Kind == ResultStructured {
		return len(r.Structured) == 0
	}
	return strings.TrimSpace(r.Text) == ""
}

// Field returns the named top-level field of a structured result.
func (r Result) Field(name string) (any, bool) {
	if r.Kind != ResultStructured {
		return nil, false
	}
	v, ok := r.Structured[name]
	return v, ok
}
