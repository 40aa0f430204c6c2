package core

import (
	"context"
	"testing"

	"github.com/studymesh/studymesh/logging"
)

type tcMockSessionStore struct{ sessions map[string]*Session }

func (m *tcMockSessionStore) Get(id string) (*Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := NewSession(id)
	if m.sessions == nil {
		m.sessions = map[string]*Session{}
	}
	m.sessions[id] = s
	return s, nil
}

func (m *tcMockSessionStore) Create(id, userID string) (*Session, error) {
	s, err := m.Get(id)
	if err == nil && userID != "" {
		s.UserID = userID
	}
	return s, err
}

func (m *tcMockSessionStore) AppendEvent(id string, ev Event) error {
	if s, ok := m.sessions[id]; ok {
		s.Events = append(s.Events, ev)
	}
	return nil
}

func (m *tcMockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	if s, ok := m.sessions[id]; ok {
		for k, v := range delta {
			s.State[k] = v
		}
	}
	return nil
}

func newTestToolContext(t *testing.T) *ToolContext {
	t.Helper()
	store := &tcMockSessionStore{}
	sess, _ := store.Create("sess-1", "")
	runCtx := NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		AgentInfo{Name: "agent-1"},
		NewUserText("hi"),
		10,
		nil, nil,
		sess, store,
		logging.NoOpLogger{},
	)
	return NewToolContext(runCtx, "call-1")
}

func TestToolContext_SetStateDualWrite(t *testing.T) {
	tc := newTestToolContext(t)

	tc.SetState("results", []any{"a"})

	if v, ok := tc.GetState("results"); !ok || len(v.([]any)) != 1 {
		t.Fatalf("state not visible within the turn: %v %v", v, ok)
	}
	if tc.Actions().StateDelta == nil || tc.Actions().StateDelta["results"] == nil {
		t.Fatal("state delta should carry the write for atomic application")
	}
}

func TestToolContext_InternalApplyActions(t *testing.T) {
	tc := newTestToolContext(t)
	tc.SetState("content_markdown", "# Notes")
	tc.TransferToAgent("SummarizerAgent")
	tc.Escalate()

	ev := NewEvent("run-1", "agent-1")
	tc.InternalApplyActions(&ev)

	if ev.Actions.StateDelta["content_markdown"] != "# Notes" {
		t.Errorf("state delta not merged into event: %+v", ev.Actions)
	}
	if ev.Actions.TransferToAgent == nil || *ev.Actions.TransferToAgent != "SummarizerAgent" {
		t.Errorf("transfer target not merged: %+v", ev.Actions)
	}
	if ev.Actions.Escalate == nil || !*ev.Actions.Escalate {
		t.Errorf("escalate flag not merged: %+v", ev.Actions)
	}
}

func TestToolContext_Validate(t *testing.T) {
	tc := newTestToolContext(t)
	if err := tc.Validate(); err != nil {
		t.Fatalf("valid context rejected: %v", err)
	}

	bad := &ToolContext{}
	if err := bad.Validate(); err == nil {
		t.Error("expected validation failure for empty context")
	}
}

func TestModelLimiter(t *testing.T) {
	ml := NewModelLimiter(2)
	if err := ml.Increment(); err != nil {
		t.Fatal(err)
	}
	if err := ml.Increment(); err != nil {
		t.Fatal(err)
	}
	if err := ml.Increment(); err == nil {
		t.Error("expected limit breach on third call")
	}
	if ml.Count() != 3 {
		t.Errorf("count mismatch: %d", ml.Count())
	}

	unlimited := NewModelLimiter(0)
	if unlimited.Remaining() != -1 {
		t.Errorf("unlimited limiter should report -1 remaining")
	}
}
