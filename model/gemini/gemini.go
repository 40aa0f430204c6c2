// Package gemini adapts the Google Gemini API (generative-ai-go) to the
// model.Model interface, including function calling. The learning-coach
// assembly defaults to this adapter.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/model"
)

// DefaultModel is the model id used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float32
	// APIKey overrides the GOOGLE_API_KEY / GEMINI_API_KEY environment
	// lookup.
	APIKey string
}

// Model wraps the Gemini API behind model.Model.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini model, resolving the API key from options or the
// GOOGLE_API_KEY / GEMINI_API_KEY environment variables.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{Model: DefaultModel, Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel, Temperature: 0.7}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model. Gemini chat sessions carry history
// explicitly, so the normalized contents are split into history plus the
// message being sent.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		gm := m.client.GenerativeModel(m.opts.Model)
		gm.SetTemperature(m.opts.Temperature)

		if sys := systemText(req); sys != "" {
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
		}
		if len(req.Tools) > 0 {
			gm.Tools = buildTools(req.Tools)
		}

		history, last := splitContents(req.Contents)
		if len(last) == 0 {
			errCh <- fmt.Errorf("gemini: no message to send")
			return
		}

		cs := gm.StartChat()
		cs.History = history

		resp, err := cs.SendMessage(ctx, last...)
		if err != nil {
			errCh <- fmt.Errorf("gemini generate: %w", err)
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			errCh <- fmt.Errorf("gemini: empty response")
			return
		}

		candidate := resp.Candidates[0]
		var parts []core.Part
		for _, p := range candidate.Content.Parts {
			switch part := p.(type) {
			case genai.Text:
				if string(part) != "" {
					parts = append(parts, core.TextPart{Text: string(part)})
				}
			case genai.FunctionCall:
				args := ""
				if part.Args != nil {
					if raw, err := json.Marshal(part.Args); err == nil {
						args = string(raw)
					}
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        core.NewID(), // the API carries no call ids
					Name:      part.Name,
					Arguments: args,
				}})
			}
		}

		out <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finishReason(candidate.FinishReason),
		}
	}()

	return out, errCh
}

// Info returns metadata describing this adapter.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini", SupportsTools: true}
}

// systemText prefers the normalized Instructions, falling back to system
// role contents.
func systemText(req model.Request) string {
	if req.Instructions != "" {
		return req.Instructions
	}
	for _, c := range req.Contents {
		if c.Role == "system" {
			if text := c.Text(); text != "" {
				return text
			}
		}
	}
	return ""
}

// splitContents converts normalized contents into Gemini history plus the
// parts of the final message to send.
func splitContents(contents []core.Content) ([]*genai.Content, []genai.Part) {
	var converted []*genai.Content
	for _, c := range contents {
		if c.Role == "system" {
			continue
		}
		gc := toGeminiContent(c)
		if gc != nil && len(gc.Parts) > 0 {
			converted = append(converted, gc)
		}
	}

	if len(converted) == 0 {
		return nil, nil
	}

	last := converted[len(converted)-1]
	return converted[:len(converted)-1], last.Parts
}

func toGeminiContent(c core.Content) *genai.Content {
	var parts []genai.Part
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				parts = append(parts, genai.Text(part.Text))
			}
		case core.FunctionCallPart:
			args := map[string]any{}
			if part.FunctionCall.Arguments != "" {
				_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
			}
			parts = append(parts, genai.FunctionCall{Name: part.FunctionCall.Name, Args: args})
		case core.FunctionResponsePart:
			parts = append(parts, genai.FunctionResponse{
				Name:     part.FunctionResponse.Name,
				Response: responseMap(part.FunctionResponse),
			})
		}
	}
	if len(parts) == 0 {
		return nil
	}

	role := "user"
	switch c.Role {
	case "assistant":
		role = "model"
	case "tool":
		role = "function"
	}

	return &genai.Content{Role: role, Parts: parts}
}

// responseMap shapes a tool result as the map payload the API expects.
func responseMap(fr core.FunctionResponse) map[string]any {
	if fr.Error != "" {
		return map[string]any{"error": fr.Error}
	}
	if m, ok := fr.Response.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": fmt.Sprintf("%v", fr.Response)}
}

func buildTools(tools []model.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  toSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toSchema converts the minimal JSON-schema-like parameter map into the
// typed genai schema.
func toSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}

	schema := &genai.Schema{Type: schemaType(params["type"])}

	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}

	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = map[string]*genai.Schema{}
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				schema.Properties[name] = toSchema(sub)
			}
		}
	}

	if items, ok := params["items"].(map[string]any); ok {
		schema.Items = toSchema(items)
	}

	switch req := params["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	if enum, ok := params["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	return schema
}

func schemaType(v any) genai.Type {
	t, _ := v.(string)
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func finishReason(r genai.FinishReason) string {
	switch r {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return "stop"
	}
}
