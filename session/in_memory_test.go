package session

import (
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/agentsim/core"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateGetCloneIsolation(t *testing.T) {
	store := NewInMemoryStore()
	sess := core.NewSession("s1", "Focus Group")
	sess.RegisterAgentKey("alice")
	if err := store.Create(sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	// mutate the original after storing
	sess.RegisterAgentKey("mallory")

	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.AgentKeys) != 1 || got.AgentKeys[0] != "alice" {
		t.Fatalf("stored session reflects external mutation: %v", got.AgentKeys)
	}

	// mutate the returned clone
	got.RegisterAgentKey("eve")
	got2, _ := store.Get("s1")
	if len(got2.AgentKeys) != 1 {
		t.Fatalf("expected isolation, got %v", got2.AgentKeys)
	}
}

func TestInMemoryStore_CreateDuplicateRejected(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Create(core.NewSession("s1", "one")); err != nil {
		t.Fatal(err)
	}
	err := store.Create(core.NewSession("s1", "two"))
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInMemoryStore_UpdateUnknown(t *testing.T) {
	store := NewInMemoryStore()
	err := store.Update(core.NewSession("missing", "x"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestInMemoryStore_DeleteThenGet(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Create(core.NewSession("s1", "one")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get("s1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	if err := store.Delete("s1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}
}

func TestInMemoryStore_ListOrderedByCreation(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"c", "a", "b"} {
		sess := core.NewSession(id, id)
		sess.Created = base.Add(time.Duration(i) * time.Second)
		if err := store.Create(sess); err != nil {
			t.Fatal(err)
		}
	}
	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	for i, want := range []string{"c", "a", "b"} {
		if list[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].ID)
		}
	}
}
