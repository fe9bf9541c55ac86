package session

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, _ := newTestSQLiteStore(t)

	sess := testutil.NewSessionBuilder("s1", "Focus Group").
		Description("a panel about pricing").
		CacheFile("/tmp/focus_group_s1.json").
		MaxDuration(45 * time.Minute).
		AgentKeys("alice", "bob").
		World("Pricing Panel").
		Interactions(7).
		Checkpoint("ckpt-1").
		Metadata("topic", "pricing").
		Build()

	if err := store.Create(sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Focus Group" || got.Description != "a panel about pricing" {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if got.Status != core.SessionCreated {
		t.Errorf("unexpected status %s", got.Status)
	}
	if got.CacheFile != sess.CacheFile || got.MaxDuration != 45*time.Minute {
		t.Errorf("resource fields not preserved: %+v", got)
	}
	if len(got.AgentKeys) != 2 || got.AgentKeys[0] != "alice" || got.AgentKeys[1] != "bob" {
		t.Errorf("agent keys not preserved: %v", got.AgentKeys)
	}
	if len(got.Worlds) != 1 || got.Worlds[0] != "Pricing Panel" {
		t.Errorf("worlds not preserved: %v", got.Worlds)
	}
	if got.Interactions != 7 {
		t.Errorf("interactions not preserved: %d", got.Interactions)
	}
	if len(got.Checkpoints) != 1 || got.Checkpoints[0] != "ckpt-1" {
		t.Errorf("checkpoints not preserved: %v", got.Checkpoints)
	}
	if v, ok := got.GetMetadata("topic"); !ok || v != "pricing" {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}
	if !got.Created.Equal(sess.Created) || !got.Updated.Equal(sess.Updated) {
		t.Errorf("timestamps not preserved: %v / %v", got.Created, got.Updated)
	}
}

func TestSQLiteStore_UpdateAndDelete(t *testing.T) {
	store, _ := newTestSQLiteStore(t)

	sess := core.NewSession("s1", "one")
	if err := store.Create(sess); err != nil {
		t.Fatal(err)
	}
	if err := sess.Transition(core.SessionRunning); err != nil {
		t.Fatal(err)
	}
	sess.AddInteractions(3)
	if err := store.Update(sess); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.Get("s1")
	if got.Status != core.SessionRunning || got.Interactions != 3 {
		t.Errorf("update not applied: %+v", got)
	}

	if err := store.Update(core.NewSession("missing", "x")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not-found on unknown update, got %v", err)
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

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	sess := core.NewSession("s1", "durable")
	sess.RegisterAgentKey("alice")
	if err := store.Create(sess); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("s1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Name != "durable" || len(got.AgentKeys) != 1 {
		t.Errorf("session not preserved across reopen: %+v", got)
	}
}

func TestSQLiteStore_ListOrderedByCreation(t *testing.T) {
	store, _ := newTestSQLiteStore(t)
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
