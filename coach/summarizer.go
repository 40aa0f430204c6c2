package coach

import (
	"github.com/studymesh/studymesh/agent"
	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/tool"
)

const summarizerInstruction = `You are the Summarizer Agent. Your job is to take in learner input, documents,
or web references and produce clear, structured notes.

### Tool Usage Rules
1. **gather_content (preferred for documents and URLs)**
   - Call it with the URL or file reference the learner provided.
   - Always use the field {content_markdown} as the text to summarize.
   - {metadata} may contain useful info like title, file type, or URL; include it only if relevant.
   - The tool falls back to web search automatically; when that happens,
     summarize the array of snippets inside {results} instead.
2. **Raw Learner Text**
   - If the learner gives plain text, summarize directly without tool calls.

### Output Requirements
- Always return **valid JSON**, never free text.
- "summary" -> 2-5 sentences with the core ideas.
- "key_topics" -> 3-5 keywords or short phrases.
- "note" -> optional, include "Content truncated" if text was cut.

### Example Output
{
  "summary": "Artificial intelligence is a field of computer science focused on creating systems that can perform tasks requiring human-like intelligence.",
  "key_topics": ["AI definition", "Machine learning", "Applications of AI"],
  "note": "Content truncated"
}`

// summarizerOutputSchema requires the synopsis and topic list; the truncation
// note stays optional.
func summarizerOutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":    map[string]any{"type": "string"},
			"key_topics": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"note":       map[string]any{"type": "string"},
		},
		"required": []string{"summary", "key_topics"},
	}
}

// searchFallbackTool adapts the search specialist to the conversion tool's
// argument shape so both ends of the gather_content chain accept the same
// call.
type searchFallbackTool struct {
	tool.Tool
}

func (t searchFallbackTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	request, _ := args["request"].(string)
	if request == "" {
		request, _ = args["url"].(string)
	}
	if request == "" {
		request, _ = args["uri"].(string)
	}
	return t.Tool.Call(toolCtx, map[string]any{"request": request})
}

// NewSummarizerAgent builds the summarization specialist. Content gathering
// is a single fallback chain: the conversion tool is always attempted first,
// and the search specialist (wrapped as a tool) runs only when conversion
// fails or yields nothing the conversion normalizer recognizes.
func NewSummarizerAgent(llm model.Model, convertTool tool.Tool, searchAgent *agent.ModelAgent) *agent.ModelAgent {
	gather := tool.NewFallbackTool(
		"gather_content",
		"Convert a document or webpage to markdown study material, falling back to web search when conversion yields nothing.",
		convertTool,
		searchFallbackTool{Tool: tool.NewAgentTool(searchAgent, func(o *tool.AgentToolOptions) {
			o.Normalizer = NewSearchNormalizer()
		})},
		func(o *tool.FallbackToolOptions) { o.Recognizer = NewConversionNormalizer() },
	)

	return agent.NewModelAgent("SummarizerAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Summarizes learner input, documents, or web content into key ideas."
		o.Instruction = agent.NewInstructionFromText(summarizerInstruction)
		o.AllowTransfer = false
		o.OutputKey = "summary_payload"
		o.OutputSchema = summarizerOutputSchema()
		o.Tools = map[string]tool.Tool{gather.Name(): gather}
	})
}
