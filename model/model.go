package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/studymesh/studymesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows and agents to drive
// generation. The reasoning service behind it is a black box to the
// delegation core.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Canned responses are matched against the last user-visible text in the
// request; scripted function calls allow exercising tool and delegation
// paths deterministically.
type MockModel struct {
	info      Info
	responses map[string]string
	calls     map[string][]core.FunctionCall
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
		calls:     make(map[string][]core.FunctionCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddFunctionCalls registers function calls the model should emit for an
// input prompt instead of a text answer.
func (m *MockModel) AddFunctionCalls(prompt string, calls ...core.FunctionCall) {
	m.calls[prompt] = calls
}

// Generate implements Model; emits optional streaming char chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		inputText := lastMatchableText(req.Contents)

		if calls, ok := m.calls[inputText]; ok {
			delete(m.calls, inputText) // one-shot so the follow-up turn gets text
			parts := make([]core.Part, 0, len(calls))
			for _, fc := range calls {
				if fc.ID == "" {
					fc.ID = core.NewID()
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			}
			respCh <- Response{
				Content:      core.Content{Role: "assistant", Parts: parts},
				FinishReason: "tool_calls",
			}
			return
		}

		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}
		respCh <- Response{
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements the Model interface.
func (m *MockModel) Info() Info { return m.info }

// lastMatchableText returns the text of the most recent user or tool content
// so canned entries can key off either the question or a tool result.
func lastMatchableText(contents []core.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		c := contents[i]
		if c.Role == "system" {
			continue
		}
		if text := c.Text(); text != "" {
			return text
		}
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				if data, err := json.Marshal(fr.FunctionResponse.Response); err == nil {
					return string(data)
				}
			}
		}
	}
	return ""
}
