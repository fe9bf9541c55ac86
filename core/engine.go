package core

import "context"

// AgentSpec describes a persona to be constructed by the engine. Specs arrive
// as in-memory values; loading them from storage is a caller concern.
type AgentSpec struct {
	Name        string         `json:"name"`
	Age         int            `json:"age,omitempty"`
	Occupation  string         `json:"occupation,omitempty"`
	Personality string         `json:"personality,omitempty"`
	Interests   []string       `json:"interests,omitempty"`
	Traits      map[string]any `json:"traits,omitempty"`
}

// Validate checks the spec for the minimum required fields.
func (s AgentSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Value: s.Name, Message: "agent spec requires a name"}
	}
	return nil
}

// AgentHandle is an opaque reference to a persona constructed and owned by
// the engine. Name returns the session-qualified display name (collision
// suffix included); handles never cross session boundaries.
type AgentHandle interface {
	Name() string
}

// World is an opaque reference to an interaction arena owned by the engine.
type World interface {
	Name() string
}

// WorldSpec describes an arena to be created by the engine.
type WorldSpec struct {
	SessionID string
	Name      string
	Members   []AgentHandle
	// CrossCommunication makes all members mutually visible so agents can
	// react to each other's utterances within a round.
	CrossCommunication bool
}

// Action is the engine-native record of one agent act within a round. The
// payload is deliberately loosely typed: downstream collectors validate the
// expected "type" and "content" keys and skip malformed entries instead of
// failing the run.
type Action struct {
	// Agent is the engine-qualified (suffixed) display name of the actor.
	Agent string `json:"agent"`
	// Round is the 1-based round index, stamped by the orchestrator.
	Round int `json:"round"`
	// Payload holds the engine-native action body ("type", "content", ...).
	Payload map[string]any `json:"payload"`
}

// ActionKind returns the payload "type" value, or "" when absent/malformed.
func (a Action) ActionKind() string {
	if a.Payload == nil {
		return ""
	}
	kind, _ := a.Payload["type"].(string)
	return kind
}

// ActionContent returns the payload "content" value, or "" when absent.
func (a Action) ActionContent() string {
	if a.Payload == nil {
		return ""
	}
	content, _ := a.Payload["content"].(string)
	return content
}

// ExtractionRequest directs a structured extraction against one agent.
type ExtractionRequest struct {
	// Objective states what the extraction should surface.
	Objective string
	// Situation gives the engine context about the kind of simulation.
	Situation string
}

// Engine is the capability contract a persona-simulation backend must
// implement. The core never probes for optional methods; every backend
// provides the full surface.
//
// A concrete implementation is responsible for:
//   - Maintaining private per-session cache state in the cache file the
//     session manager names, opens and closes but never parses
//   - Constructing agents from specs and keeping them addressable by handle
//   - Advancing arenas one round at a time, each round giving every member
//     one opportunity to act
//   - Rendering a human-readable transcript of everything that happened
//   - Producing structured data from one agent's accumulated state
//
// Implementations SHOULD:
//   - Respect context cancellation on every call; these may be long-running
//     remote operations
//   - Return errors untouched; callers wrap them into EngineError
//   - Emit actions in a stable within-round order (this order is
//     authoritative for transcript reconstruction)
type Engine interface {
	// BeginSession prepares per-session engine state backed by cacheFile.
	BeginSession(ctx context.Context, sessionID, cacheFile string) error

	// CheckpointSession flushes pending engine state to the cache file so a
	// snapshot of it is complete.
	CheckpointSession(ctx context.Context, sessionID string) error

	// EndSession discards per-session engine state. Handles constructed for
	// the session become invalid.
	EndSession(ctx context.Context, sessionID string) error

	// ConstructAgent builds a persona from the spec, scoped to the session.
	ConstructAgent(ctx context.Context, sessionID string, spec AgentSpec) (AgentHandle, error)

	// CreateWorld wires the member agents into a new interaction arena.
	CreateWorld(ctx context.Context, spec WorldSpec) (World, error)

	// Broadcast delivers a stimulus to every member of the world.
	Broadcast(ctx context.Context, world World, stimulus string) error

	// RunRound advances the arena one round and returns the actions emitted,
	// in the engine's within-round order.
	RunRound(ctx context.Context, world World) ([]Action, error)

	// RenderTranscript returns the styled plain-text rendering of the world's
	// history so far.
	RenderTranscript(ctx context.Context, world World) (string, error)

	// Converse delivers a prompt directly to one agent and lets it act on it.
	Converse(ctx context.Context, agent AgentHandle, prompt string) error

	// Extract produces structured, objective-directed data from the agent's
	// accumulated state.
	Extract(ctx context.Context, agent AgentHandle, req ExtractionRequest) (map[string]any, error)
}
