package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/internal/util"
)

// TurnOptions configures a synchronous RunTurn call.
type TurnOptions struct {
	// SessionID selects the conversation; generated when empty.
	SessionID string
	// UserID labels the session's owning user; generated when empty.
	UserID string
}

// outputContractProvider is implemented by agents that declare an output
// contract for their terminal payload.
type outputContractProvider interface {
	OutputSchema() map[string]any
}

// RunTurn executes one full turn synchronously and returns the terminal
// payload as a result object. The caller always receives a result:
//   - terminal text that decodes as a JSON object => the decoded object
//   - terminal text that does not decode => {"raw": <text>}
//   - no terminal content => {}
//
// Turn-fatal failures (unknown delegation target, store errors, model
// errors surfaced by the agent) are returned as errors.
func (r *Runner) RunTurn(ctx context.Context, userText string, optFns ...func(o *TurnOptions)) (map[string]any, error) {
	opts := TurnOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionID == "" {
		opts.SessionID = core.NewID()
	}
	if opts.UserID == "" {
		opts.UserID = core.NewID()
	}

	r.logger.Debug("runner.turn.request", "session", opts.SessionID, "user", opts.UserID)

	runID, eventsCh, errorsCh, err := r.Run(ctx, opts.SessionID, core.NewUserText(userText), func(o *RunOptions) {
		o.UserID = opts.UserID
	})
	if err != nil {
		return nil, err
	}

	var (
		finalText   string
		finalAuthor string
		runErr      error
	)

	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			if ev.ErrorMessage != nil && runErr == nil {
				runErr = fmt.Errorf("turn failed: %s", *ev.ErrorMessage)
			}
			if ev.IsFinalResponse() && ev.Content != nil {
				if text := ev.Content.Text(); text != "" {
					finalText = text
					finalAuthor = ev.Author
				}
			}
		case e, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if e != nil && runErr == nil {
				runErr = e
			}
		case <-ctx.Done():
			_ = r.Cancel(runID)
			return nil, ctx.Err()
		}
	}

	if runErr != nil {
		return nil, runErr
	}

	result := decodeTerminal(finalText)
	r.checkOutputContract(finalAuthor, result)

	return result, nil
}

// decodeTerminal turns the terminal message text into the result object.
func decodeTerminal(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		return decoded
	}

	return map[string]any{"raw": text}
}

// checkOutputContract validates the result against the finalizing agent's
// declared output contract. Violations degrade to a log line; the caller
// still receives the result unchanged.
func (r *Runner) checkOutputContract(author string, result map[string]any) {
	if author == "" || len(result) == 0 {
		return
	}

	target := r.agent
	if target.Name() != author {
		target = target.FindAgent(author)
	}
	if target == nil {
		return
	}

	provider, ok := target.(outputContractProvider)
	if !ok {
		return
	}

	schema := provider.OutputSchema()
	if schema == nil {
		return
	}

	if err := util.ValidateParameters(result, schema); err != nil {
		r.logger.Warn(
			"runner.turn.output_contract_violation",
			"agent", author,
			"error", err.Error(),
		)
	}
}
