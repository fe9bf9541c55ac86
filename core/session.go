package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle states of a simulation session.
type SessionStatus string

const (
	// SessionCreated is the initial status assigned at begin.
	SessionCreated SessionStatus = "CREATED"
	// SessionRunning indicates an in-flight simulation run.
	SessionRunning SessionStatus = "RUNNING"
	// SessionPaused indicates a suspended session that may resume.
	SessionPaused SessionStatus = "PAUSED"
	// SessionCompleted is the terminal status of a normally ended session.
	SessionCompleted SessionStatus = "COMPLETED"
	// SessionFailed is the terminal status after an engine failure.
	SessionFailed SessionStatus = "FAILED"
	// SessionStopped is the terminal status after a cooperative stop.
	SessionStopped SessionStatus = "STOPPED"
)

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionStopped
}

// Active reports whether the session accepts checkpoints (RUNNING or PAUSED).
func (s SessionStatus) Active() bool {
	return s == SessionRunning || s == SessionPaused
}

// sessionTransitions encodes the allowed status machine:
// CREATED -> RUNNING -> {PAUSED <-> RUNNING} -> {COMPLETED | FAILED | STOPPED}.
// Terminal statuses are also reachable directly from CREATED because a session
// may end, fail during agent loading or be stopped before its first run.
var sessionTransitions = map[SessionStatus]map[SessionStatus]bool{
	SessionCreated: {SessionRunning: true, SessionCompleted: true, SessionFailed: true, SessionStopped: true},
	SessionRunning: {SessionPaused: true, SessionCompleted: true, SessionFailed: true, SessionStopped: true},
	SessionPaused:  {SessionRunning: true, SessionCompleted: true, SessionFailed: true, SessionStopped: true},
}

// Session represents a bounded-lifetime simulation container grouping related
// runs that share agent identity and a cache file resource. It is safe for
// concurrent access.
//
// Contract:
//   - Mutations update the Updated timestamp
//   - Transition enforces the status machine; terminal statuses reject all
//     further transitions
//   - The checkpoint list is append-only while the session is active
//   - Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Status       SessionStatus  `json:"status"`
	CacheFile    string         `json:"cache_file"`
	MaxDuration  time.Duration  `json:"max_duration,omitempty"`
	AgentKeys    []string       `json:"agent_keys"`
	Worlds       []string       `json:"worlds"`
	Interactions int            `json:"interactions"`
	Checkpoints  []string       `json:"checkpoints"`
	Metadata     map[string]any `json:"metadata"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`
	mu           sync.RWMutex
}

// NewSession creates a session in status CREATED with the given ID and name.
func NewSession(id, name string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		Name:        name,
		Status:      SessionCreated,
		AgentKeys:   []string{},
		Worlds:      []string{},
		Checkpoints: []string{},
		Metadata:    map[string]any{},
		Created:     now,
		Updated:     now,
	}
}

// GetStatus returns the current status.
func (s *Session) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Transition moves the session into the given status, enforcing the status
// machine. Transitioning a terminal session or skipping states returns a
// ValidationError.
func (s *Session) Transition(to SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status == to {
		return nil
	}
	if allowed := sessionTransitions[s.Status]; !allowed[to] {
		return &ValidationError{
			Field:   "status",
			Value:   string(to),
			Message: fmt.Sprintf("illegal transition %s -> %s", s.Status, to),
		}
	}
	s.Status = to
	s.Updated = time.Now().UTC()
	return nil
}

// RegisterAgentKey records an agent cache key in load order. Duplicate keys
// are ignored so repeated loads keep the registry stable.
func (s *Session) RegisterAgentKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.AgentKeys {
		if k == key {
			return
		}
	}
	s.AgentKeys = append(s.AgentKeys, key)
	s.Updated = time.Now().UTC()
}

// RegisterWorld records a world name on the session.
func (s *Session) RegisterWorld(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Worlds = append(s.Worlds, name)
	s.Updated = time.Now().UTC()
}

// AddInteractions increments the interaction counter by n.
func (s *Session) AddInteractions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Interactions += n
	s.Updated = time.Now().UTC()
}

// AppendCheckpoint appends a checkpoint id. The list only grows while the
// session is active; appending on a terminal session returns a ValidationError.
func (s *Session) AppendCheckpoint(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.Terminal() {
		return &ValidationError{Field: "status", Value: string(s.Status), Message: "checkpoint list is frozen on terminal sessions"}
	}
	s.Checkpoints = append(s.Checkpoints, id)
	s.Updated = time.Now().UTC()
	return nil
}

// SetMetadata sets a metadata key updating the Updated timestamp.
func (s *Session) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
	s.Updated = time.Now().UTC()
}

// GetMetadata returns the value and existence flag for a metadata key.
func (s *Session) GetMetadata(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Metadata[key]
	return v, ok
}

// Age returns the wall time elapsed since session creation.
func (s *Session) Age() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.Created)
}

// Suffix returns the deterministic session-unique display-name suffix derived
// from the session id (its first eight hex characters).
func (s *Session) Suffix() string {
	if len(s.ID) < 8 {
		return s.ID
	}
	return s.ID[:8]
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		Status:       s.Status,
		CacheFile:    s.CacheFile,
		MaxDuration:  s.MaxDuration,
		AgentKeys:    make([]string, len(s.AgentKeys)),
		Worlds:       make([]string, len(s.Worlds)),
		Interactions: s.Interactions,
		Checkpoints:  make([]string, len(s.Checkpoints)),
		Metadata:     make(map[string]any, len(s.Metadata)),
		Created:      s.Created,
		Updated:      s.Updated,
	}
	copy(clone.AgentKeys, s.AgentKeys)
	copy(clone.Worlds, s.Worlds)
	copy(clone.Checkpoints, s.Checkpoints)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists sessions and their evolving registries and counters.
type SessionStore interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	Update(s *Session) error
	Delete(id string) error
	List() ([]*Session, error)
}

// NewID generates a new unique identifier for sessions, checkpoints and runs.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// ShortID returns the first eight characters of an id, the form used for
// display-name suffixes and generated resource names.
func ShortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
