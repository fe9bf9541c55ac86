package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/logging"
)

// Options configures a Cache using the functional options pattern.
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Cache memoizes persona handles per session.
//
// Contract:
//   - The first Load for a (session, key) pair constructs the persona through
//     the engine and stores the handle; every later Load in the same session
//     returns the identical handle unchanged
//   - Display names are qualified with the session suffix before construction
//     so same-named personas in different sessions never collide
//   - Entries are scoped to their session id; ClearSession removes them when
//     the session ends
//   - Concurrent Loads of the same key construct at most once.
type Cache struct {
	engine core.Engine
	logger logging.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntries
}

// sessionEntries holds one session's handles plus the construction lock that
// serializes engine calls for that session.
type sessionEntries struct {
	mu      sync.Mutex
	handles map[string]core.AgentHandle
	keys    []string // load order
}

// NewCache creates a Cache bound to the given engine.
func NewCache(engine core.Engine, optFns ...func(o *Options)) *Cache {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Cache{
		engine:   engine,
		logger:   opts.Logger,
		sessions: make(map[string]*sessionEntries),
	}
}

func (c *Cache) entries(sessionID string) *sessionEntries {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.sessions[sessionID]
	if !ok {
		entries = &sessionEntries{handles: make(map[string]core.AgentHandle)}
		c.sessions[sessionID] = entries
	}
	return entries
}

// Load returns the session's handle for key, constructing the persona through
// the engine on first reference. The spec's display name is qualified with the
// session-unique suffix (the first eight characters of the session id) so
// name collisions across sessions resolve deterministically.
func (c *Cache) Load(ctx context.Context, sessionID, key string, spec core.AgentSpec) (core.AgentHandle, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, &core.ValidationError{Field: "session_id", Value: sessionID, Message: "session id must not be empty"}
	}
	if strings.TrimSpace(key) == "" {
		return nil, &core.ValidationError{Field: "key", Value: key, Message: "agent key must not be empty"}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if c.engine == nil {
		return nil, &core.ValidationError{Field: "engine", Message: "no engine configured"}
	}

	entries := c.entries(sessionID)
	entries.mu.Lock()
	defer entries.mu.Unlock()

	if handle, ok := entries.handles[key]; ok {
		return handle, nil
	}

	qualified := spec
	qualified.Name = core.QualifyAgentName(spec.Name, core.ShortID(sessionID))

	handle, err := c.engine.ConstructAgent(ctx, sessionID, qualified)
	if err != nil {
		return nil, core.NewEngineError("construct_agent", err)
	}

	entries.handles[key] = handle
	entries.keys = append(entries.keys, key)
	c.logger.Debug("agent.load", "session_id", sessionID, "key", key, "name", handle.Name())
	return handle, nil
}

// Get returns the cached handle for key without constructing, or a not-found
// error when the session never loaded it.
func (c *Cache) Get(sessionID, key string) (core.AgentHandle, error) {
	c.mu.Lock()
	entries, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return nil, core.NewNotFound("agent", key)
	}

	entries.mu.Lock()
	defer entries.mu.Unlock()
	handle, ok := entries.handles[key]
	if !ok {
		return nil, core.NewNotFound("agent", key)
	}
	return handle, nil
}

// Keys returns the session's agent keys in load order.
func (c *Cache) Keys(sessionID string) []string {
	c.mu.Lock()
	entries, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	entries.mu.Lock()
	defer entries.mu.Unlock()
	out := make([]string, len(entries.keys))
	copy(out, entries.keys)
	return out
}

// ClearSession purges every handle loaded under the session id. Called when
// the session ends; state must not bleed between unrelated simulations.
func (c *Cache) ClearSession(sessionID string) {
	c.mu.Lock()
	entries, ok := c.sessions[sessionID]
	if ok {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()
	if ok {
		entries.mu.Lock()
		n := len(entries.handles)
		entries.mu.Unlock()
		c.logger.Debug("agent.clear_session", "session_id", sessionID, "purged", n)
	}
}
