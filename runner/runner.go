// Package runner coordinates turn execution: it resolves the root agent,
// creates run contexts, streams events, applies state side-effects atomically
// per event and persists conversation history. RunTurn adds the synchronous
// request/response surface used by clients.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/studymesh/studymesh/core"
	"github.com/studymesh/studymesh/logging"
	"github.com/studymesh/studymesh/session"
)

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run (0 = unlimited).
	MaxModelCalls int
	// SessionStore persists sessions; defaults to the in-memory store.
	SessionStore core.SessionStore
	// Logger receives structured runner logs.
	Logger logging.Logger
}

// Runner drives agent execution for a fixed root agent. Public methods are
// safe for concurrent use; each Run is an independent turn over a session.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int

	sessionStore core.SessionStore
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		logger:          opts.Logger,
		activeRuns:      make(map[string]context.CancelFunc),
	}
}

// SessionStore returns the store backing this runner's sessions.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// RunOptions carries per-run settings.
type RunOptions struct {
	// UserID labels the session with its owning user. Empty leaves any
	// existing label untouched.
	UserID string
}

// Run starts an asynchronous turn. The user content is persisted first so the
// agent's request assembly sees it in history. Callers must drain both
// returned channels; they are closed when the turn ends.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
	optFns ...func(o *RunOptions),
) (string, <-chan core.Event, <-chan error, error) {
	opts := RunOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		sess *core.Session
		err  error
	)
	if opts.UserID != "" {
		sess, err = r.sessionStore.Create(sessionID, opts.UserID)
	} else {
		sess, err = r.sessionStore.Get(sessionID)
	}
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		sessionID,
		runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "root"},
		userContent,
		r.maxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	r.logger.Info("runner.turn.start", "run", runID, "session", sessionID, "agent", r.agent.Name())

	go func() {
		defer func() {
			close(agentEmit)
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
		}()

		if err := r.agent.Run(runCtx); err != nil {
			select {
			case <-runCtx.Done():
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()

		r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running turn by run ID. In-flight state deltas that have
// not been applied yet are discarded with the turn.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// processEvents applies event side-effects, persists non-partial events and
// forwards them to the caller. The resume signal is sent only after
// persistence so agents observe a consistent session on their next step.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	phase := "started"

	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}

			phase = r.logPhase(phase, sessionID, ev)

			if err := r.applyEventActions(sessionID, ev); err != nil {
				select {
				case <-runCtx.Done():
				case errorsCh <- fmt.Errorf("failed to process event actions: %w", err):
				}
				return
			}

			if !ev.IsPartial() {
				if err := r.sessionStore.AppendEvent(sessionID, ev); err != nil {
					select {
					case <-runCtx.Done():
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}
					return
				}
			}

			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
			}

			if !ev.IsPartial() {
				select {
				case <-runCtx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// logPhase tracks the coarse turn state machine for observability.
func (r *Runner) logPhase(phase, sessionID string, ev core.Event) string {
	next := phase
	switch {
	case ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "":
		next = "delegating"
	case len(ev.GetFunctionCalls()) > 0:
		next = "tool-invoking"
	case ev.IsFinalResponse():
		next = "finalized"
	}

	if next != phase {
		r.logger.Debug("runner.turn.phase", "session", sessionID, "from", phase, "to", next, "author", ev.Author)
	}

	return next
}

// applyEventActions applies an event's state delta as one atomic store
// operation. A turn cancelled before an event reaches this point leaves the
// session untouched by that event's writes.
func (r *Runner) applyEventActions(sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		r.logger.Debug("runner.event.escalate", "session", sessionID, "author", ev.Author)
	}

	return nil
}
