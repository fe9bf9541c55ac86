package checkpoint

import (
	"sync"

	"github.com/hupe1980/agentsim/core"
)

// InMemoryStore is a trivial in-process CheckpointStore implementation useful
// for tests, examples and single-process prototypes. Records and payloads are
// kept in maps guarded by an RWMutex; payload bytes are copied on save and
// retrieval to avoid accidental external mutation of internal buffers.
//
// This implementation is intentionally minimal; it does not enforce retention
// limits or size quotas. For durability across process restarts use FileStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*core.Checkpoint
	payloads map[string][]byte
	order    map[string][]string // sessionID -> checkpoint ids in save order
}

// NewInMemoryStore returns an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[string]*core.Checkpoint),
		payloads: make(map[string][]byte),
		order:    make(map[string][]string),
	}
}

// Save stores (or overwrites) the checkpoint record and its payload. The
// payload slice is copied before storage.
func (s *InMemoryStore) Save(ckpt *core.Checkpoint, payload []byte) error {
	if ckpt == nil || ckpt.ID == "" {
		return &core.ValidationError{Field: "checkpoint", Message: "checkpoint id must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[ckpt.ID]; !exists {
		s.order[ckpt.SessionID] = append(s.order[ckpt.SessionID], ckpt.ID)
	}
	s.records[ckpt.ID] = ckpt.Clone()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.payloads[ckpt.ID] = cp
	return nil
}

// Get returns a copy of the stored checkpoint record or a not-found error.
func (s *InMemoryStore) Get(id string) (*core.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, core.NewNotFound("checkpoint", id)
	}
	return record.Clone(), nil
}

// Payload returns a copy of the snapshot bytes saved with the checkpoint.
func (s *InMemoryStore) Payload(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.payloads[id]
	if !ok {
		return nil, core.NewNotFound("checkpoint", id)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns the checkpoints belonging to a session in save order. The
// slice and its records are snapshots safe for caller mutation.
func (s *InMemoryStore) List(sessionID string) ([]*core.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[sessionID]
	out := make([]*core.Checkpoint, 0, len(ids))
	for _, id := range ids {
		if record, ok := s.records[id]; ok {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

// SetStatus updates the status of a stored checkpoint.
func (s *InMemoryStore) SetStatus(id string, status core.CheckpointStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return core.NewNotFound("checkpoint", id)
	}
	record.Status = status
	return nil
}

// Delete removes the checkpoint and its payload if present.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return core.NewNotFound("checkpoint", id)
	}
	delete(s.records, id)
	delete(s.payloads, id)
	ids := s.order[record.SessionID]
	for i, cid := range ids {
		if cid == id {
			s.order[record.SessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
