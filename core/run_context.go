package core

import (
	"context"

	"github.com/hupe1980/agentsim/logging"
)

// RunContext carries execution state & helpers for one world run.
// It encapsulates the per-run scope the orchestrator threads through the
// round loop. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, RunID, world name)
//   - The record emission channel feeding streaming consumers
//   - The engine call limiter for this run
//   - Logging helpers bound to the run
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	WorldName        string
	Emit             chan<- InteractionRecord
	Limiter          *EngineCallLimiter

	*loggerAdapter
}

// NewRunContext constructs a RunContext bound to a run's identifiers.
func NewRunContext(
	ctx context.Context,
	sessionID, runID, worldName string,
	maxEngineCalls int,
	emit chan<- InteractionRecord,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		WorldName:     worldName,
		Emit:          emit,
		Limiter:       NewEngineCallLimiter(maxEngineCalls),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// EmitRecord delivers a record to the run's consumer, honoring cancellation.
// Returns false when the context was cancelled before delivery.
func (rc *RunContext) EmitRecord(rec InteractionRecord) bool {
	if rc.Emit == nil {
		return true
	}
	select {
	case rc.Emit <- rec:
		return true
	case <-rc.Context.Done():
		return false
	}
}

// CountEngineCall increments the run's engine call limiter.
func (rc *RunContext) CountEngineCall() error {
	if rc.Limiter == nil {
		return nil
	}
	return rc.Limiter.Increment()
}
