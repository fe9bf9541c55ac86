// Package transcript reconstructs the chronological interaction transcript of
// a world run.
//
// Two sources produce the same record shape behind one interface: the
// structured source consumes the engine's native action stream (preferred,
// authoritative round numbers), the fallback source parses the rendered
// plain-text transcript (best-effort sequence indexes). Reconstruct prefers
// the structured path and falls back only when it yields zero records, so the
// scraping logic stays swappable without touching the orchestrator.
package transcript
