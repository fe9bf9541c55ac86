// Package engine provides reference implementations of the core.Engine
// contract.
//
// ScriptedEngine replays deterministic, pre-scripted utterances and is the
// engine of choice for tests and demos. LLMEngine drives personas through a
// model.Model provider, building system prompts from agent specs and applying
// the world's visibility rules per round. Both share the styled transcript
// renderer, whose output the transcript package's fallback parser understands.
//
// Production deployments integrate an external persona-simulation service by
// implementing core.Engine against its API; nothing in the rest of the module
// depends on these reference engines.
package engine
