package extract

import (
	"context"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/logging"
)

// DefaultConsolidationPrompt is sent to the rapporteur before extraction.
const DefaultConsolidationPrompt = "Can you please consolidate the discussion and opinions that were shared? " +
	"Provide detailed insights on each perspective, including key points and concerns."

// DefaultSituation gives the engine context about the kind of simulation.
const DefaultSituation = "A focus group or simulation session to gather opinions and insights."

// DefaultThemes is the fixed candidate theme list. Frequencies stay zero
// absent deeper analysis.
var DefaultThemes = []string{
	"Product Quality",
	"Price Sensitivity",
	"User Experience",
	"Brand Perception",
}

// Default sentiment keyword buckets. Positive is checked first; anything
// matching neither bucket counts as neutral.
var (
	DefaultPositiveKeywords = []string{"good", "great", "excellent", "love", "like", "positive"}
	DefaultNegativeKeywords = []string{"bad", "terrible", "hate", "dislike", "negative", "poor"}
)

// Options configures an Extractor using the functional options pattern.
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// ConsolidationPrompt overrides the prompt sent to the rapporteur.
	ConsolidationPrompt string

	// Situation overrides the simulation context given to the engine.
	Situation string

	// Themes overrides the candidate theme list.
	Themes []string

	// PositiveKeywords and NegativeKeywords override the sentiment buckets.
	PositiveKeywords []string
	NegativeKeywords []string
}

// Extractor consolidates a discussion through a rapporteur agent and derives
// an ExtractionResult.
//
// Contract:
//   - Consolidation failure is logged and extraction still attempted with the
//     rapporteur's prior state (graceful degradation, not abort)
//   - Extraction failure becomes the result's Error field, never a returned
//     error, so a failed extraction cannot discard a valid transcript
//   - Statistics are always computed from the records, independent of the
//     engine's success.
type Extractor struct {
	engine core.Engine
	logger logging.Logger
	opts   Options
}

// New creates an Extractor bound to the given engine.
func New(engine core.Engine, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Logger:              logging.NoOpLogger{},
		ConsolidationPrompt: DefaultConsolidationPrompt,
		Situation:           DefaultSituation,
		Themes:              DefaultThemes,
		PositiveKeywords:    DefaultPositiveKeywords,
		NegativeKeywords:    DefaultNegativeKeywords,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Extractor{engine: engine, logger: opts.Logger, opts: opts}
}

// Extract consolidates the discussion through the first agent (the
// rapporteur) and produces the extraction result with derived statistics.
// The records may be empty; a silent rapporteur yields all-zero statistics,
// not an error.
func (e *Extractor) Extract(ctx context.Context, agents []core.AgentHandle, records []core.InteractionRecord, objective string) (*core.ExtractionResult, error) {
	if len(agents) == 0 {
		return nil, &core.ValidationError{Field: "agents", Message: "extraction requires at least one agent"}
	}
	if e.engine == nil {
		return nil, &core.ValidationError{Field: "engine", Message: "no engine configured"}
	}

	rapporteur := agents[0]
	result := e.computeStatistics(records)

	if err := e.engine.Converse(ctx, rapporteur, e.opts.ConsolidationPrompt); err != nil {
		// The rapporteur's prior state is still worth extracting from.
		e.logger.Warn("extract.consolidation.failed",
			"rapporteur", rapporteur.Name(), "error", err)
	}

	raw, err := e.engine.Extract(ctx, rapporteur, core.ExtractionRequest{
		Objective: objective,
		Situation: e.opts.Situation,
	})
	if err != nil {
		extractionErr := &core.ExtractionError{Stage: "extraction", Err: err}
		result.Error = extractionErr.Error()
		e.logger.Error("extract.failed",
			"rapporteur", rapporteur.Name(), "objective", objective, "error", err)
		return result, nil
	}
	result.Raw = raw

	e.logger.Info("extract.done",
		"rapporteur", rapporteur.Name(),
		"participants", result.Stats.Participants,
		"utterances", result.Stats.TotalUtterances)
	return result, nil
}
