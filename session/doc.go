// Package session houses the session Manager plus concrete implementations
// of core.SessionStore. The interface itself (and the Session struct) live in
// the core package to centralize domain contracts; keeping the manager and
// implementations here prevents higher level packages (agents, worlds) from
// depending on concrete storage.
//
// The Manager owns the session lifecycle: it begins sessions against the
// persona engine, acquires and releases the per-session cache file, snapshots
// cache state into checkpoints and restores from them, and tears everything
// down at End. All operations on one session are serialized; distinct
// sessions are fully independent.
//
// Add additional store backends (Redis, Postgres, ...) in new files without
// changing any calling code - only the wiring layer needs to decide which
// implementation to instantiate.
package session
