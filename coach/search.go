package coach

import (
	"github.com/studymesh/studymesh/agent"
	"github.com/studymesh/studymesh/model"
	"github.com/studymesh/studymesh/tool"
)

const searchInstruction = `You are a powerful search assistant. Your job is to transform user queries into
effective web searches and return the most useful, relevant, and reliable
information available on the web.

Your responsibilities include:
- Returning concise search results with titles, snippets, and URLs.
- Prioritizing authoritative and trustworthy sources over spammy or irrelevant ones.
- Handling both general knowledge queries (e.g., 'history of AI') and
  time-sensitive searches (e.g., 'latest AI news 2025').
- Supporting exploratory queries by providing multiple angles or perspectives.
- When the query is ambiguous, infer the intent and provide the most
  contextually relevant results.

Always provide:
- A clear, structured list of top results.
- Enough detail in snippets to help decide which links are worth deeper analysis.
- Diverse coverage (news, academic, technical, practical) when relevant.

Do not fabricate information. Only return what the search tool provides.
If no good results are found, state that explicitly.`

// searchOutputSchema requires a non-empty hit list where every hit carries at
// least a title and a locator.
func searchOutputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"results": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":   map[string]any{"type": "string"},
						"url":     map[string]any{"type": "string"},
						"snippet": map[string]any{"type": "string"},
					},
					"required": []string{"title", "url"},
				},
			},
		},
		"required": []string{"results"},
	}
}

// NewSearchAgent builds the web-search specialist. It is a leaf agent: it
// never transfers and exposes exactly one tool, so other agents use it via
// tool.NewAgentTool.
func NewSearchAgent(llm model.Model, searchTool tool.Tool) *agent.ModelAgent {
	return agent.NewModelAgent("SearchAgent", llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Finds and retrieves relevant, up-to-date information from the web when given a query."
		o.Instruction = agent.NewInstructionFromText(searchInstruction)
		o.AllowTransfer = false
		o.OutputSchema = searchOutputSchema()
		o.Tools = map[string]tool.Tool{searchTool.Name(): searchTool}
	})
}
