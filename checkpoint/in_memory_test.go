package checkpoint

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentsim/core"
)

// Interface compliance (compile-time assertions)
var _ core.CheckpointStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PayloadIsolation(t *testing.T) {
	store := NewInMemoryStore()
	ckpt := core.NewCheckpoint("c1", "baseline", "s1")
	payload := []byte("hello")
	if err := store.Save(ckpt, payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	// mutate original slice
	payload[0] = 'H'
	out, err := store.Payload("c1")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if string(out) != "hello" { // should not reflect mutation
		t.Fatalf("expected 'hello', got %q", string(out))
	}
	// mutate returned slice
	out[0] = 'x'
	out2, _ := store.Payload("c1")
	if string(out2) != "hello" {
		t.Fatalf("expected isolation, got %q", string(out2))
	}
}

func TestInMemoryStore_RecordIsolation(t *testing.T) {
	store := NewInMemoryStore()
	ckpt := core.NewCheckpoint("c1", "baseline", "s1")
	ckpt.Metadata.AgentsSummary = []string{"Alice"}
	if err := store.Save(ckpt, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	ckpt.Metadata.AgentsSummary[0] = "Mallory"

	got, err := store.Get("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Metadata.AgentsSummary[0] != "Alice" {
		t.Fatalf("stored record mutated: %v", got.Metadata.AgentsSummary)
	}
}

func TestInMemoryStore_ListOrderAndDelete(t *testing.T) {
	store := NewInMemoryStore()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("c%d", i)
		if err := store.Save(core.NewCheckpoint(id, "ckpt", "s1"), []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Save(core.NewCheckpoint("other", "ckpt", "s2"), nil); err != nil {
		t.Fatal(err)
	}

	list, err := store.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(list))
	}
	for i, ckpt := range list {
		if want := fmt.Sprintf("c%d", i); ckpt.ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, ckpt.ID)
		}
	}

	if err := store.Delete("c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get("c1"); err == nil {
		t.Fatal("expected error for deleted checkpoint")
	}
	list, _ = store.List("s1")
	if len(list) != 2 {
		t.Fatalf("expected 2 checkpoints after delete, got %d", len(list))
	}
}

func TestInMemoryStore_SetStatus(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Save(core.NewCheckpoint("c1", "ckpt", "s1"), nil); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus("c1", core.CheckpointSaved); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := store.Get("c1")
	if got.Status != core.CheckpointSaved {
		t.Fatalf("expected SAVED, got %s", got.Status)
	}
	if err := store.SetStatus("unknown", core.CheckpointSaved); err == nil {
		t.Fatal("expected error for unknown checkpoint")
	}
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	store := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i%10)
			if err := store.Save(core.NewCheckpoint(id, "ckpt", "s1"), []byte("data")); err != nil {
				t.Errorf("save err: %v", err)
			}
			_, _ = store.List("s1")
		}()
	}
	wg.Wait()
	list, err := store.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 10 {
		t.Fatalf("expected 10 checkpoints, got %d", len(list))
	}
}
