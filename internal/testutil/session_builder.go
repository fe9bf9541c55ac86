package testutil

import (
	"time"

	"github.com/hupe1980/agentsim/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("s1", "Focus Group").
//		AgentKeys("alice", "bob").World("Pricing Panel").Build()
type SessionBuilder struct {
	id          string
	name        string
	description string
	cacheFile   string
	maxDuration time.Duration
	agentKeys   []string
	worlds      []string
	interacts   int
	checkpoints []string
	metadata    map[string]any
}

// NewSessionBuilder creates a builder for a session with the given identity.
// Use chainable methods then call Build.
func NewSessionBuilder(id, name string) *SessionBuilder {
	return &SessionBuilder{id: id, name: name, metadata: map[string]any{}}
}

// Description sets the free-form session description (chainable).
func (b *SessionBuilder) Description(d string) *SessionBuilder { b.description = d; return b }

// CacheFile sets the session's cache file path (chainable).
func (b *SessionBuilder) CacheFile(path string) *SessionBuilder { b.cacheFile = path; return b }

// MaxDuration sets the advisory wall-time budget (chainable).
func (b *SessionBuilder) MaxDuration(d time.Duration) *SessionBuilder { b.maxDuration = d; return b }

// AgentKeys registers agent keys in order (chainable).
func (b *SessionBuilder) AgentKeys(keys ...string) *SessionBuilder {
	b.agentKeys = append(b.agentKeys, keys...)
	return b
}

// World registers a world name (chainable).
func (b *SessionBuilder) World(name string) *SessionBuilder {
	b.worlds = append(b.worlds, name)
	return b
}

// Interactions sets the interaction count (chainable).
func (b *SessionBuilder) Interactions(n int) *SessionBuilder { b.interacts = n; return b }

// Checkpoint appends a checkpoint id (chainable).
func (b *SessionBuilder) Checkpoint(id string) *SessionBuilder {
	b.checkpoints = append(b.checkpoints, id)
	return b
}

// Metadata sets a metadata key/value pair (chainable).
func (b *SessionBuilder) Metadata(key string, value any) *SessionBuilder {
	b.metadata[key] = value
	return b
}

// Build returns a *core.Session in status CREATED with the configured state.
func (b *SessionBuilder) Build() *core.Session {
	sess := core.NewSession(b.id, b.name)
	sess.Description = b.description
	sess.CacheFile = b.cacheFile
	sess.MaxDuration = b.maxDuration
	for _, key := range b.agentKeys {
		sess.RegisterAgentKey(key)
	}
	for _, name := range b.worlds {
		sess.RegisterWorld(name)
	}
	if b.interacts > 0 {
		sess.AddInteractions(b.interacts)
	}
	for _, id := range b.checkpoints {
		// AppendCheckpoint only rejects duplicates, which a builder never
		// produces from distinct ids.
		_ = sess.AppendCheckpoint(id)
	}
	for k, v := range b.metadata {
		sess.SetMetadata(k, v)
	}
	return sess
}
