package world

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/logging"
	"github.com/hupe1980/agentsim/transcript"
)

// Options configures an Orchestrator using the functional options pattern.
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// RecordBufferSize sets the streaming channel buffer for Start.
	RecordBufferSize int

	// MaxEngineCalls caps engine calls per run. Zero means unlimited.
	MaxEngineCalls int

	// TranscriptOptions tune the reconstruction (utterance threshold, clock).
	TranscriptOptions []func(o *transcript.Options)
}

// RunRequest describes one world run.
type RunRequest struct {
	// SessionID scopes the run to its owning session.
	SessionID string

	// WorldName names the arena.
	WorldName string

	// Agents are the member personas, already loaded for the session.
	Agents []core.AgentHandle

	// Stimulus is broadcast to every member before the first round.
	Stimulus string

	// Rounds is the number of arena steps; each round gives every agent one
	// opportunity to act.
	Rounds int

	// CrossCommunication makes agents mutually visible so they can react to
	// each other's utterances.
	CrossCommunication bool
}

func (r RunRequest) validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return &core.ValidationError{Field: "session_id", Value: r.SessionID, Message: "session id must not be empty"}
	}
	if strings.TrimSpace(r.WorldName) == "" {
		return &core.ValidationError{Field: "world_name", Value: r.WorldName, Message: "world name must not be empty"}
	}
	if len(r.Agents) == 0 {
		return &core.ValidationError{Field: "agents", Message: "a run requires at least one agent"}
	}
	for _, a := range r.Agents {
		if a == nil {
			return &core.ValidationError{Field: "agents", Message: "agent handles must not be nil"}
		}
	}
	if r.Rounds < 1 {
		return &core.ValidationError{Field: "rounds", Value: r.Rounds, Message: "rounds must be at least 1"}
	}
	return nil
}

// RunResult is the complete outcome of one world run.
type RunResult struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// WorldName is the arena the run operated on.
	WorldName string `json:"world_name"`

	// Rounds is the number of rounds that fully executed.
	Rounds int `json:"rounds"`

	// Actions is the raw engine-native action stream, round-stamped.
	Actions []core.Action `json:"actions"`

	// Transcript is the rendered plain-text transcript.
	Transcript string `json:"transcript"`

	// Records is the reconstructed chronological transcript.
	Records []core.InteractionRecord `json:"records"`

	// Malformed counts skipped action entries, for diagnostics.
	Malformed int `json:"malformed"`

	// Source identifies which reconstruction path produced Records.
	Source core.RecordSource `json:"source"`
}

// Orchestrator runs interaction arenas against a persona-simulation engine.
//
// Contract:
//   - Initialization is all-or-nothing: a world that fails to construct
//     aborts the run before any round executes
//   - Rounds are strictly sequential, one engine call each; the orchestrator
//     stamps the 1-based round index onto every action
//   - An engine failure aborts the run; records from completed rounds stay in
//     the RunResult for diagnostics but the error is terminal
//   - Stop is cooperative: it cancels the run's context, which is observed
//     between engine calls, never mid-call.
type Orchestrator struct {
	engine    core.Engine
	logger    logging.Logger
	callbacks *callbackManager
	opts      Options

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New creates an Orchestrator bound to the given engine.
func New(engine core.Engine, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:           logging.NoOpLogger{},
		RecordBufferSize: 64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.RecordBufferSize <= 0 {
		opts.RecordBufferSize = 64
	}
	return &Orchestrator{
		engine:     engine,
		logger:     opts.Logger,
		callbacks:  newCallbackManager(),
		opts:       opts,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// RegisterCallback hooks a lifecycle callback into every subsequent run.
// Registration is not synchronized with active runs; complete it before
// starting them.
func (o *Orchestrator) RegisterCallback(cb Callback) {
	o.callbacks.register(cb)
}

// Start executes the run asynchronously. Records stream in transcript order;
// the error channel carries at most one terminal error. Both channels are
// closed when the run completes. Validation failures surface immediately.
func (o *Orchestrator) Start(ctx context.Context, req RunRequest) (string, <-chan core.InteractionRecord, <-chan error, error) {
	if o.engine == nil {
		return "", nil, nil, &core.ValidationError{Field: "engine", Message: "no engine configured"}
	}
	if err := req.validate(); err != nil {
		return "", nil, nil, err
	}

	runID := core.NewID()
	recordsCh := make(chan core.InteractionRecord, o.opts.RecordBufferSize)
	errorsCh := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.activeRuns[runID] = cancel
	o.mu.Unlock()

	rc := core.NewRunContext(runCtx, req.SessionID, runID, req.WorldName,
		o.opts.MaxEngineCalls, recordsCh, o.logger)

	go func() {
		defer func() {
			close(recordsCh)
			close(errorsCh)
			cancel()
			o.mu.Lock()
			delete(o.activeRuns, runID)
			o.mu.Unlock()
		}()

		if _, err := o.execute(rc, req); err != nil {
			select {
			case errorsCh <- err:
			default:
			}
		}
	}()

	return runID, recordsCh, errorsCh, nil
}

// Run executes the run synchronously and returns the complete result. On
// failure the partial result is returned alongside the error so completed
// rounds remain inspectable.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if o.engine == nil {
		return nil, &core.ValidationError{Field: "engine", Message: "no engine configured"}
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	runID := core.NewID()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	o.activeRuns[runID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.activeRuns, runID)
		o.mu.Unlock()
	}()

	rc := core.NewRunContext(runCtx, req.SessionID, runID, req.WorldName,
		o.opts.MaxEngineCalls, nil, o.logger)
	return o.execute(rc, req)
}

// Stop requests cooperative cancellation of an active run. The in-flight
// engine call is not interrupted; the run stops before its next one.
func (o *Orchestrator) Stop(runID string) error {
	o.mu.Lock()
	cancel, ok := o.activeRuns[runID]
	o.mu.Unlock()
	if !ok {
		return core.NewNotFound("run", runID)
	}
	cancel()
	return nil
}

// execute is the round loop shared by Start and Run. Records are streamed
// through the RunContext as they are reconstructed; the returned result is
// partial when err is non-nil.
func (o *Orchestrator) execute(rc *core.RunContext, req RunRequest) (*RunResult, error) {
	result := &RunResult{RunID: rc.RunID, WorldName: req.WorldName, Source: core.SourceStructured}
	cbCtx := &CallbackContext{RunContext: rc, WorldName: req.WorldName}

	fail := func(err error) (*RunResult, error) {
		cbCtx.Err = err
		// on_error callbacks must never mask the original failure.
		_ = o.callbacks.execute(rc.Context, CallbackOnError, cbCtx)
		rc.LogError("world.run.failed", "run_id", rc.RunID, "world", req.WorldName, "error", err)
		return result, err
	}

	if err := o.callbacks.execute(rc.Context, CallbackBeforeWorld, cbCtx); err != nil {
		return fail(err)
	}

	if err := rc.CountEngineCall(); err != nil {
		return fail(err)
	}
	world, err := o.engine.CreateWorld(rc.Context, core.WorldSpec{
		SessionID:          req.SessionID,
		Name:               req.WorldName,
		Members:            req.Agents,
		CrossCommunication: req.CrossCommunication,
	})
	if err != nil {
		return fail(core.NewEngineError("create_world", err))
	}
	rc.LogInfo("world.run.start",
		"run_id", rc.RunID, "world", req.WorldName,
		"agents", len(req.Agents), "rounds", req.Rounds,
		"cross_communication", req.CrossCommunication)

	if req.Stimulus != "" {
		if err := rc.CountEngineCall(); err != nil {
			return fail(err)
		}
		if err := o.engine.Broadcast(rc.Context, world, req.Stimulus); err != nil {
			return fail(core.NewEngineError("broadcast", err))
		}
		if err := o.callbacks.execute(rc.Context, CallbackAfterBroadcast, cbCtx); err != nil {
			return fail(err)
		}
	}

	for round := 1; round <= req.Rounds; round++ {
		if err := rc.Err(); err != nil {
			return fail(err)
		}

		cbCtx.Round = round
		cbCtx.Actions = nil
		if err := o.callbacks.execute(rc.Context, CallbackBeforeRound, cbCtx); err != nil {
			return fail(err)
		}

		if err := rc.CountEngineCall(); err != nil {
			return fail(err)
		}
		actions, err := o.engine.RunRound(rc.Context, world)
		if err != nil {
			return fail(core.NewEngineError("run_round", err))
		}
		for i := range actions {
			actions[i].Round = round
		}
		result.Actions = append(result.Actions, actions...)
		result.Rounds = round

		records, diag, err := transcript.NewStructuredSource(actions, o.opts.TranscriptOptions...).Reconstruct()
		if err != nil {
			return fail(err)
		}
		result.Malformed += diag.Malformed
		for _, rec := range records {
			result.Records = append(result.Records, rec)
			if !rc.EmitRecord(rec) {
				return fail(rc.Err())
			}
		}

		cbCtx.Actions = actions
		if err := o.callbacks.execute(rc.Context, CallbackAfterRound, cbCtx); err != nil {
			return fail(err)
		}
		rc.LogDebug("world.run.round",
			"run_id", rc.RunID, "round", round,
			"actions", len(actions), "records", len(records))
	}
	cbCtx.Round = 0
	cbCtx.Actions = nil

	if err := rc.CountEngineCall(); err != nil {
		return fail(err)
	}
	rendered, err := o.engine.RenderTranscript(rc.Context, world)
	if err != nil {
		return fail(core.NewEngineError("render_transcript", err))
	}
	result.Transcript = rendered

	// The fallback parser is consulted only when the structured path yielded
	// nothing; its sequence indexes are best-effort, not true rounds.
	if len(result.Records) == 0 {
		records, diag, err := transcript.NewFallbackSource(rendered, o.opts.TranscriptOptions...).Reconstruct()
		if err != nil {
			return fail(err)
		}
		result.Records = records
		result.Source = core.SourceParsedFallback
		result.Malformed += diag.Malformed
		for _, rec := range records {
			if !rc.EmitRecord(rec) {
				return fail(rc.Err())
			}
		}
	}

	rc.LogInfo("world.run.done",
		"run_id", rc.RunID, "world", req.WorldName,
		"rounds", result.Rounds, "records", len(result.Records),
		"malformed", result.Malformed, "source", string(result.Source))
	return result, nil
}
