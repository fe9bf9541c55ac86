package core

import (
	"testing"
	"time"
)

func TestSession_TransitionLifecycle(t *testing.T) {
	s := NewSession("11112222-3333-4444-5555-666677778888", "weekly-panel")
	if s.Status != SessionCreated {
		t.Fatalf("expected CREATED, got %s", s.Status)
	}

	steps := []SessionStatus{SessionRunning, SessionPaused, SessionRunning, SessionCompleted}
	for _, next := range steps {
		if err := s.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	if !s.GetStatus().Terminal() {
		t.Error("COMPLETED should be terminal")
	}
	if err := s.Transition(SessionRunning); err == nil {
		t.Error("terminal session should reject transitions")
	}
}

func TestSession_TransitionRejectsSkippedStates(t *testing.T) {
	s := NewSession("s1", "n")
	if err := s.Transition(SessionPaused); err == nil {
		t.Error("CREATED -> PAUSED should be rejected")
	}
	// direct terminal exits from CREATED are allowed
	for _, to := range []SessionStatus{SessionCompleted, SessionFailed, SessionStopped} {
		fresh := NewSession("s", "n")
		if err := fresh.Transition(to); err != nil {
			t.Errorf("CREATED -> %s should be allowed: %v", to, err)
		}
	}
}

func TestSession_CheckpointListFrozenWhenTerminal(t *testing.T) {
	s := NewSession("s1", "n")
	if err := s.AppendCheckpoint("c1"); err != nil {
		t.Fatalf("append on active session: %v", err)
	}
	if err := s.Transition(SessionStopped); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.AppendCheckpoint("c2"); err == nil {
		t.Error("checkpoint list must not grow on terminal sessions")
	}
	if len(s.Checkpoints) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(s.Checkpoints))
	}
}

func TestSession_RegisterAgentKeyDeduplicates(t *testing.T) {
	s := NewSession("s1", "n")
	s.RegisterAgentKey("alice")
	s.RegisterAgentKey("bob")
	s.RegisterAgentKey("alice")
	if len(s.AgentKeys) != 2 {
		t.Fatalf("expected 2 keys, got %v", s.AgentKeys)
	}
	if s.AgentKeys[0] != "alice" || s.AgentKeys[1] != "bob" {
		t.Errorf("load order not preserved: %v", s.AgentKeys)
	}
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := NewSession("s1", "n")
	s.RegisterAgentKey("alice")
	s.SetMetadata("restored_from", "ckpt-1")

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should be a different pointer")
	}

	clone.RegisterAgentKey("bob")
	clone.SetMetadata("extra", true)
	_ = clone.AppendCheckpoint("c9")

	if len(s.AgentKeys) != 1 {
		t.Errorf("original agent keys mutated: %v", s.AgentKeys)
	}
	if _, ok := s.GetMetadata("extra"); ok {
		t.Error("original metadata mutated through clone")
	}
	if len(s.Checkpoints) != 0 {
		t.Errorf("original checkpoints mutated: %v", s.Checkpoints)
	}
}

func TestSession_Suffix(t *testing.T) {
	s := NewSession("deadbeef-1234-5678-9abc-def012345678", "n")
	if got := s.Suffix(); got != "deadbeef" {
		t.Fatalf("expected suffix deadbeef, got %s", got)
	}
}

func TestSession_InteractionCounter(t *testing.T) {
	s := NewSession("s1", "n")
	before := s.Updated
	time.Sleep(time.Millisecond)
	s.AddInteractions(4)
	s.AddInteractions(3)
	if s.Interactions != 7 {
		t.Fatalf("expected 7 interactions, got %d", s.Interactions)
	}
	if !s.Updated.After(before) {
		t.Error("Updated timestamp should advance on mutation")
	}
}
