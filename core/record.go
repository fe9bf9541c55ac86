package core

import (
	"regexp"
	"time"
)

// RecordSource identifies which reconstruction path produced a record.
type RecordSource string

const (
	// SourceStructured marks records derived from the engine's action stream.
	// Their round numbers are authoritative.
	SourceStructured RecordSource = "structured"
	// SourceParsedFallback marks records scraped from the rendered transcript.
	// Their round numbers are best-effort sequence indexes, not true rounds.
	SourceParsedFallback RecordSource = "parsed-fallback"
)

// ActionTalk is the utterance action kind; only these become records.
const ActionTalk = "TALK"

// ActionThink is the internal-reasoning action kind; never recorded.
const ActionThink = "THINK"

// ActionDone marks an agent finishing its turn.
const ActionDone = "DONE"

// InteractionRecord is the canonical transcript entry derived from a run.
// Emission order defines total transcript order: round-major, within-round
// emission order. Round numbers are non-decreasing in emission order.
type InteractionRecord struct {
	Round     int          `json:"round"`
	Agent     string       `json:"agent"`
	Utterance string       `json:"utterance"`
	Timestamp time.Time    `json:"timestamp"`
	Source    RecordSource `json:"source"`
}

// NewInteractionRecord creates a record with a cleaned agent name and a UTC
// timestamp.
func NewInteractionRecord(round int, agent, utterance string, source RecordSource) InteractionRecord {
	return InteractionRecord{
		Round:     round,
		Agent:     CleanAgentName(agent),
		Utterance: utterance,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

// collisionSuffix matches the deterministic session-unique display-name
// suffix appended at agent load time.
var collisionSuffix = regexp.MustCompile(`_[a-f0-9]{8}$`)

// CleanAgentName strips the session-collision suffix from a display name,
// restoring the name the persona was specified with.
func CleanAgentName(name string) string {
	return collisionSuffix.ReplaceAllString(name, "")
}

// QualifyAgentName appends the session suffix to a base display name. The
// result round-trips through CleanAgentName.
func QualifyAgentName(base, suffix string) string {
	if suffix == "" {
		return base
	}
	return base + "_" + suffix
}
