package session

import (
	"testing"

	"github.com/studymesh/studymesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateAndGet(t *testing.T) {
	store := NewInMemoryStore()

	created, err := store.Create("sess-1", "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != created.ID {
		t.Errorf("expected session %q, got %q", created.ID, got.ID)
	}
	if got == created {
		t.Error("Get should return a clone, not the stored instance")
	}

	// Mutating the clone must not leak into the store.
	got.SetState("local", true)
	fresh, _ := store.Get("sess-1")
	if _, ok := fresh.GetState("local"); ok {
		t.Error("clone mutation leaked into the store")
	}
}

func TestInMemoryStore_CreateLabelsUserAndKeepsHistory(t *testing.T) {
	store := NewInMemoryStore()

	if _, err := store.Create("sess-1", "learner-7"); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendEvent("sess-1", core.NewUserMessageEvent("run-1", "hi")); err != nil {
		t.Fatal(err)
	}

	// A repeated Create never wipes the session and an empty user id keeps
	// the existing label.
	if _, err := store.Create("sess-1", ""); err != nil {
		t.Fatal(err)
	}

	sess, err := store.Get("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UserID != "learner-7" {
		t.Errorf("expected user %q, got %q", "learner-7", sess.UserID)
	}
	if len(sess.GetEvents()) != 1 {
		t.Errorf("expected history to survive Create, got %d events", len(sess.GetEvents()))
	}
}

func TestInMemoryStore_AppendEventAndApplyDelta(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.Create("sess-1", ""); err != nil {
		t.Fatal(err)
	}

	if err := store.AppendEvent("sess-1", core.NewUserMessageEvent("run-1", "hi")); err != nil {
		t.Fatal(err)
	}
	if err := store.ApplyDelta("sess-1", map[string]any{"results": []any{"hit"}}); err != nil {
		t.Fatal(err)
	}

	sess, err := store.Get("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.GetEvents()) != 1 {
		t.Errorf("expected 1 event, got %d", len(sess.GetEvents()))
	}
	if _, ok := sess.GetState("results"); !ok {
		t.Error("delta not applied to session state")
	}
}

func TestInMemoryStore_SessionsAreIsolated(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.Create("a", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("b", ""); err != nil {
		t.Fatal(err)
	}

	if err := store.ApplyDelta("a", map[string]any{"k": "va"}); err != nil {
		t.Fatal(err)
	}

	b, err := store.Get("b")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.GetState("k"); ok {
		t.Error("state must never leak across sessions")
	}
}
