package transcript

import (
	"time"

	"github.com/hupe1980/agentsim/core"
)

// DefaultMinUtteranceLength is the minimum trimmed utterance length recorded.
// Shorter fragments (acknowledgements, rendering artifacts) carry no signal.
const DefaultMinUtteranceLength = 10

// Options configure a reconstruction source.
type Options struct {
	// MinUtteranceLength is the minimum trimmed length, in runes, an utterance
	// must have to be recorded. Defaults to DefaultMinUtteranceLength.
	MinUtteranceLength int

	// Now stamps record timestamps. Defaults to time.Now in UTC; tests inject
	// a fixed clock.
	Now func() time.Time
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := Options{
		MinUtteranceLength: DefaultMinUtteranceLength,
		Now:                func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MinUtteranceLength <= 0 {
		opts.MinUtteranceLength = DefaultMinUtteranceLength
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return opts
}

// Diagnostics reports what a reconstruction saw, for logging and monitoring.
type Diagnostics struct {
	// Source identifies which path produced the records.
	Source core.RecordSource `json:"source"`
	// Records is the number of interaction records emitted.
	Records int `json:"records"`
	// Malformed counts skipped action entries (structured path only).
	Malformed int `json:"malformed"`
	// Blocks counts parsed agent blocks (fallback path only).
	Blocks int `json:"blocks"`
}

// Source turns run output into ordered interaction records. Both
// reconstruction paths implement it, so either is swappable without touching
// the orchestrator.
type Source interface {
	Reconstruct() ([]core.InteractionRecord, Diagnostics, error)
}

// Reconstruct derives the transcript from a finished run, preferring the
// structured action stream. The rendered-text fallback is consulted only when
// the structured path yields zero records (an engine without structured
// support, or a stream of nothing but malformed entries).
func Reconstruct(actions []core.Action, rendered string, optFns ...func(o *Options)) ([]core.InteractionRecord, Diagnostics, error) {
	records, diag, err := NewStructuredSource(actions, optFns...).Reconstruct()
	if err != nil {
		return nil, diag, err
	}
	if len(records) > 0 {
		return records, diag, nil
	}

	fallbackRecords, fallbackDiag, err := NewFallbackSource(rendered, optFns...).Reconstruct()
	if err != nil {
		return nil, fallbackDiag, err
	}
	// Structured malformed counts stay visible even when the fallback wins.
	fallbackDiag.Malformed += diag.Malformed
	return fallbackRecords, fallbackDiag, nil
}
