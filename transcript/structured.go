package transcript

import (
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/agentsim/core"
)

// StructuredSource reconstructs records from the engine's native action
// stream. Emission order is authoritative: actions arrive round-major, within
// each round in the engine's order, and records are appended preserving it.
// That order defines total transcript order.
type StructuredSource struct {
	actions []core.Action
	opts    Options
}

var _ Source = (*StructuredSource)(nil)

// NewStructuredSource creates a structured reconstruction over the actions of
// one run.
func NewStructuredSource(actions []core.Action, optFns ...func(o *Options)) *StructuredSource {
	return &StructuredSource{actions: actions, opts: applyOptions(optFns)}
}

// Reconstruct emits one record per utterance-type action whose trimmed
// content meets the length threshold. Malformed entries (nil payloads,
// missing or mistyped fields, round regressions) are counted and skipped,
// never fatal. Repeated identical utterances are kept; the transcript is a
// faithful replay, not a deduplicated digest.
func (s *StructuredSource) Reconstruct() ([]core.InteractionRecord, Diagnostics, error) {
	diag := Diagnostics{Source: core.SourceStructured}
	var records []core.InteractionRecord

	lastRound := 0
	for _, action := range s.actions {
		if action.Payload == nil {
			diag.Malformed++
			continue
		}
		kind, ok := action.Payload["type"].(string)
		if !ok || kind == "" {
			diag.Malformed++
			continue
		}
		if kind != core.ActionTalk {
			// THINK, DONE and friends are legitimate non-utterance actions.
			continue
		}
		content, ok := action.Payload["content"].(string)
		if !ok {
			diag.Malformed++
			continue
		}
		if action.Round < 1 || action.Round < lastRound {
			// A regressing round index means the stream is out of order for
			// this entry; trusting it would break the ordering invariant.
			diag.Malformed++
			continue
		}

		utterance := strings.TrimSpace(content)
		if utf8.RuneCountInString(utterance) < s.opts.MinUtteranceLength {
			continue
		}

		lastRound = action.Round
		records = append(records, core.InteractionRecord{
			Round:     action.Round,
			Agent:     core.CleanAgentName(action.Agent),
			Utterance: utterance,
			Timestamp: s.opts.Now(),
			Source:    core.SourceStructured,
		})
	}

	diag.Records = len(records)
	return records, diag, nil
}
