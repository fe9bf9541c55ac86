package testutil

import "github.com/hupe1980/agentsim/core"

// ActionBuilder provides a fluent helper for constructing engine action
// streams in tests.
// Example:
//
//	actions := NewActionBuilder().
//		Talk(1, "Alice_a1b2c3d4", "I like the concept.").
//		Think(1, "Bob_a1b2c3d4").
//		Malformed(1, "Eve_a1b2c3d4").
//		Build()
//
// Chain only the entries you need; payloads follow the engine-native
// "type"/"content" convention.
type ActionBuilder struct {
	actions []core.Action
}

// NewActionBuilder creates an empty builder.
func NewActionBuilder() *ActionBuilder { return &ActionBuilder{} }

// Talk appends a TALK action with the given utterance (chainable).
func (b *ActionBuilder) Talk(round int, agent, content string) *ActionBuilder {
	b.actions = append(b.actions, core.Action{
		Agent:   agent,
		Round:   round,
		Payload: map[string]any{"type": core.ActionTalk, "content": content},
	})
	return b
}

// Think appends a THINK action; these never become records (chainable).
func (b *ActionBuilder) Think(round int, agent string) *ActionBuilder {
	b.actions = append(b.actions, core.Action{
		Agent:   agent,
		Round:   round,
		Payload: map[string]any{"type": core.ActionThink, "content": "internal reasoning goes unrecorded"},
	})
	return b
}

// Done appends a DONE action marking the agent finishing its turn (chainable).
func (b *ActionBuilder) Done(round int, agent string) *ActionBuilder {
	b.actions = append(b.actions, core.Action{
		Agent:   agent,
		Round:   round,
		Payload: map[string]any{"type": core.ActionDone},
	})
	return b
}

// Malformed appends an action with no usable payload (chainable).
func (b *ActionBuilder) Malformed(round int, agent string) *ActionBuilder {
	b.actions = append(b.actions, core.Action{Agent: agent, Round: round})
	return b
}

// Raw appends an arbitrary payload action (chainable).
func (b *ActionBuilder) Raw(round int, agent string, payload map[string]any) *ActionBuilder {
	b.actions = append(b.actions, core.Action{Agent: agent, Round: round, Payload: payload})
	return b
}

// Build returns the accumulated action stream.
func (b *ActionBuilder) Build() []core.Action {
	return append([]core.Action{}, b.actions...)
}
