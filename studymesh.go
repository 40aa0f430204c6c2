// Package studymesh provides a high-level façade over the turn runner and
// service abstractions (sessions & logging) enabling rapid construction of
// delegating agent networks. Most applications interact with this package by:
//  1. Assembling a delegation graph (e.g. coach.BuildRootAgent or a custom
//     agent.ModelAgent tree)
//  2. Creating a StudyMesh via New() (optionally overriding the defaults)
//  3. Running turns asynchronously (Run) or synchronously (RunSync, RunTurn)
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing.
package studymesh

import (
	"context"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/logging"
	"github.com/studymesh/studymesh/runner"
	"github.com/studymesh/studymesh/session"
)

// Options configures the StudyMesh instance.
type Options struct {
	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int

	// MaxModelCalls caps model calls per turn as a loop guard (0 = unlimited).
	MaxModelCalls int

	// SessionStore defaults to the in-memory implementation if not provided.
	SessionStore core.SessionStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// StudyMesh is the high-level façade aggregating the runner and services.
type StudyMesh struct {
	opts   Options
	runner *runner.Runner
}

// New creates a StudyMesh driving the given root agent. Any unset service is
// initialized with an in-memory implementation.
func New(root core.Agent, optFns ...func(o *Options)) *StudyMesh {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(root, func(o *runner.Options) {
		o.EventBufferSize = opts.EventBufferSize
		o.MaxModelCalls = opts.MaxModelCalls
		o.SessionStore = opts.SessionStore
		o.Logger = opts.Logger
	})

	return &StudyMesh{opts: opts, runner: r}
}

// SessionStore exposes the configured session store.
func (m *StudyMesh) SessionStore() core.SessionStore { return m.runner.SessionStore() }

// Run starts an asynchronous turn returning the run ID plus event & error
// channels. Callers must drain both channels.
func (m *StudyMesh) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	optFns ...func(o *runner.RunOptions),
) (string, <-chan core.Event, <-chan error, error) {
	return m.runner.Run(ctx, sessionID, userContent, optFns...)
}

// RunSync is a synchronous helper that drains the async channels, accumulates
// events and returns the run ID.
func (m *StudyMesh) RunSync(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	optFns ...func(o *runner.RunOptions),
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := m.runner.Run(ctx, sessionID, userContent, optFns...)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for eventsCh != nil || errorsCh != nil {
		select {
		case <-ctx.Done():
			_ = m.runner.Cancel(runID)
			return runID, events, ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)

		case runErr, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if runErr != nil {
				return runID, events, runErr
			}
		}
	}

	return runID, events, nil
}

// RunTurn runs one full turn and returns the decoded terminal payload.
func (m *StudyMesh) RunTurn(
	ctx context.Context,
	userText string,
	optFns ...func(o *runner.TurnOptions),
) (map[string]any, error) {
	return m.runner.RunTurn(ctx, userText, optFns...)
}

// Cancel aborts an in-flight run by ID.
func (m *StudyMesh) Cancel(runID string) error { return m.runner.Cancel(runID) }
