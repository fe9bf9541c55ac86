package session

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentsim/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions in
// a process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demos. Each returned session is cloned to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create stores a clone of the session, rejecting duplicate ids.
func (s *InMemoryStore) Create(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return &core.ValidationError{Field: "id", Value: sess.ID, Message: "session already exists"}
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get returns a clone of the stored session or a not-found error.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.NewNotFound("session", id)
	}
	return sess.Clone(), nil
}

// Update overwrites the stored session with a clone of the given snapshot.
func (s *InMemoryStore) Update(sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return core.NewNotFound("session", sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete removes the session if present.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return core.NewNotFound("session", id)
	}
	delete(s.sessions, id)
	return nil
}

// List returns clones of all stored sessions ordered by creation time
// (id as tie breaker for a stable order).
func (s *InMemoryStore) List() ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}
