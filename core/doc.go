// Package core provides the foundational domain types and interfaces used by
// AgentSim. It defines the core abstractions for:
//
//   - Sessions (bounded-lifetime simulation containers with status lifecycle,
//     registries and an interaction counter)
//   - Checkpoints (named, persisted snapshots of session state)
//   - Actions and InteractionRecords (engine-native vs. canonical transcript
//     entries)
//   - ExtractionResult (consolidated insights plus heuristic statistics)
//   - The Engine capability contract a persona-simulation backend implements
//   - Pluggable stores for sessions and checkpoints
//
// The package intentionally keeps implementation concerns (persistence,
// orchestration, concrete engines) out of scope, exposing small interfaces to
// enable custom backends and extensions. All exported identifiers include
// concise documentation to aid discoverability and external consumption.
package core
