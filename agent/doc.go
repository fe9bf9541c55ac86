// Package agent provides the session-scoped persona cache.
//
// Within one session, repeated loads of the same agent key return the
// identical handle, so later steps (stimulus delivery, consolidation,
// extraction) always address the same persona. Handles never leak across
// sessions; ending a session purges its entries.
package agent
