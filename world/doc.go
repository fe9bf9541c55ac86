// Package world orchestrates interaction arenas: it wires agents into a
// world, broadcasts a stimulus, advances the requested number of rounds and
// reconstructs the chronological transcript from the engine's output.
//
// Rounds execute strictly sequentially because agents may react to each
// other's utterances within a round. Start provides the streaming API (record
// and error channels, both closed on completion); Run is the synchronous
// variant returning the complete RunResult. Lifecycle callbacks hook the run
// at well-defined points without touching the round loop.
package world
