package flow

import (
	"fmt"
	"maps"

	"github.com/studymesh/studymesh/core"
	internalutil "github.com/studymesh/studymesh/internal/util"
	"github.com/studymesh/studymesh/model"
)

// InstructionsProcessor resolves the agent instruction and renders template
// placeholders against the current state view (session state overlaid with
// staged writes from the running turn).
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest adds system instructions to the model request.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	state := stateView(runCtx)
	if len(state) > 0 {
		req.Instructions, err = internalutil.RenderTemplate(instructions, state)
		if err != nil {
			return fmt.Errorf("failed to render template: %w", err)
		}
	} else {
		req.Instructions = instructions
	}

	return nil
}

// stateView merges the persisted session state with the turn's staged delta,
// staged values winning.
func stateView(runCtx *core.RunContext) map[string]any {
	view := map[string]any{}
	if runCtx.Session != nil && runCtx.Session.State != nil {
		maps.Copy(view, runCtx.Session.State)
	}
	maps.Copy(view, runCtx.StateDelta)
	return view
}

// ContentsProcessor assembles the model request contents: system instructions
// followed by trimmed conversation history.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds conversation contents to the model request.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	contents := []core.Content{{
		Role:  "system",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	}}

	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		if max := agent.MaxHistoryMessages(); max > 0 && len(events) > max {
			events = events[len(events)-max:]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	// Fall back to the raw user content when history is empty (for example
	// when a flow runs outside the turn runner).
	if len(contents) == 1 && len(runCtx.UserContent.Parts) > 0 {
		contents = append(contents, runCtx.UserContent)
	}

	req.Contents = contents
	return nil
}
