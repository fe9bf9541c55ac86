// Package agentsim provides a high-level façade over the persona-simulation
// Engine and its service layers (sessions, agents, worlds, extraction &
// logging), enabling rapid construction of persona-simulation runs. Most
// applications interact with this package by:
//  1. Creating an AgentSim via New() with a concrete Engine
//  2. Running end-to-end simulations through RunSimulation, or
//  3. Driving the layers directly via Sessions(), Agents(), Worlds() and
//     Extractor() for finer control
//
// The façade delegates session lifecycle to session.Manager, persona
// construction to agent.Cache, the round loop to world.Orchestrator and
// result derivation to extract.Extractor. All defaults are safe for local
// development and testing; production deployments typically supply durable
// stores and a structured logger.
package agentsim

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agentsim/agent"
	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/extract"
	"github.com/hupe1980/agentsim/logging"
	"github.com/hupe1980/agentsim/session"
	"github.com/hupe1980/agentsim/world"
)

// Options configures the AgentSim instance.
type Options struct {
	// Logger provides structured logging across all layers. Defaults to NoOp.
	Logger logging.Logger

	// SessionStore persists sessions (defaults to in-memory).
	SessionStore core.SessionStore

	// CheckpointStore persists checkpoint records and payloads (defaults to
	// in-memory).
	CheckpointStore core.CheckpointStore

	// CacheDir is where derived session cache files are created.
	CacheDir string

	// WorldOptions tune the orchestrator (buffer sizes, engine call caps,
	// transcript thresholds).
	WorldOptions []func(o *world.Options)

	// ExtractOptions tune the extractor (prompts, themes, keyword buckets).
	ExtractOptions []func(o *extract.Options)
}

// AgentSim is the high-level façade aggregating the session, agent, world and
// extraction layers around one engine.
type AgentSim struct {
	engine    core.Engine
	logger    logging.Logger
	sessions  *session.Manager
	agents    *agent.Cache
	worlds    *world.Orchestrator
	extractor *extract.Extractor
}

// New creates an AgentSim bound to the given engine. A nil engine is
// accepted; operations fail with a validation error at first use.
func New(engine core.Engine, optFns ...func(o *Options)) *AgentSim {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	sessions := session.NewManager(engine, func(o *session.Options) {
		o.Logger = opts.Logger
		if opts.SessionStore != nil {
			o.Store = opts.SessionStore
		}
		if opts.CheckpointStore != nil {
			o.Checkpoints = opts.CheckpointStore
		}
		if opts.CacheDir != "" {
			o.CacheDir = opts.CacheDir
		}
	})
	agents := agent.NewCache(engine, func(o *agent.Options) {
		o.Logger = opts.Logger
	})
	worldOpts := append([]func(o *world.Options){func(o *world.Options) {
		o.Logger = opts.Logger
	}}, opts.WorldOptions...)
	extractOpts := append([]func(o *extract.Options){func(o *extract.Options) {
		o.Logger = opts.Logger
	}}, opts.ExtractOptions...)

	return &AgentSim{
		engine:    engine,
		logger:    opts.Logger,
		sessions:  sessions,
		agents:    agents,
		worlds:    world.New(engine, worldOpts...),
		extractor: extract.New(engine, extractOpts...),
	}
}

// Sessions returns the session lifecycle manager.
func (a *AgentSim) Sessions() *session.Manager { return a.sessions }

// Agents returns the session-scoped agent cache.
func (a *AgentSim) Agents() *agent.Cache { return a.agents }

// Worlds returns the world orchestrator.
func (a *AgentSim) Worlds() *world.Orchestrator { return a.worlds }

// Extractor returns the result extractor.
func (a *AgentSim) Extractor() *extract.Extractor { return a.extractor }

// SimulationRequest describes one end-to-end simulation.
type SimulationRequest struct {
	// Name names the session and the arena.
	Name string

	// Description is free-form context stored on the session.
	Description string

	// Agents are the persona specs to construct, in member order. The first
	// agent acts as rapporteur during extraction.
	Agents []core.AgentSpec

	// Stimulus is broadcast to every member before the first round.
	Stimulus string

	// Rounds is the number of arena steps.
	Rounds int

	// CrossCommunication makes agents mutually visible within the arena.
	CrossCommunication bool

	// Objective directs the extraction. Empty skips extraction entirely.
	Objective string

	// MaxDuration is the advisory wall-time budget for the session.
	MaxDuration time.Duration
}

// SimulationResult is the complete outcome of one RunSimulation call.
type SimulationResult struct {
	// Session is the session record as created for the run.
	Session *core.Session `json:"session"`

	// Summary condenses the finished session.
	Summary *session.Summary `json:"summary,omitempty"`

	// Records is the reconstructed chronological transcript.
	Records []core.InteractionRecord `json:"records"`

	// Transcript is the rendered plain-text transcript.
	Transcript string `json:"transcript"`

	// Source identifies which reconstruction path produced Records.
	Source core.RecordSource `json:"source"`

	// Malformed counts skipped action entries, for diagnostics.
	Malformed int `json:"malformed"`

	// Extraction carries the derived result when an objective was given.
	Extraction *core.ExtractionResult `json:"extraction,omitempty"`
}

// RunSimulation executes a complete simulation: session begin, persona
// construction, world run, transcript reconstruction and (objective
// permitting) extraction. The session is always ended, on every path, without
// ever masking the primary error; an engine failure marks it FAILED first so
// the summary preserves that status. On failure the partial result is
// returned alongside the error.
func (a *AgentSim) RunSimulation(ctx context.Context, req SimulationRequest) (res *SimulationResult, err error) {
	if a.engine == nil {
		return nil, &core.ValidationError{Field: "engine", Message: "no engine configured"}
	}
	if len(req.Agents) == 0 {
		return nil, &core.ValidationError{Field: "agents", Message: "a simulation requires at least one agent"}
	}
	if req.Rounds < 1 {
		return nil, &core.ValidationError{Field: "rounds", Value: req.Rounds, Message: "rounds must be at least 1"}
	}

	sess, err := a.sessions.Begin(ctx, req.Name, func(o *session.BeginOptions) {
		o.Description = req.Description
		o.MaxDuration = req.MaxDuration
	})
	if err != nil {
		return nil, err
	}
	res = &SimulationResult{Session: sess, Source: core.SourceStructured}

	defer func() {
		a.agents.ClearSession(sess.ID)
		// Teardown must run even when the caller's context is already
		// cancelled, otherwise the cache file and session entry leak.
		summary, endErr := a.sessions.End(context.WithoutCancel(ctx), sess.ID)
		if endErr != nil {
			if err == nil {
				err = endErr
			} else {
				a.logger.Warn("simulation.end.failed", "session_id", sess.ID, "error", endErr)
			}
			return
		}
		res.Summary = summary
	}()

	handles := make([]core.AgentHandle, 0, len(req.Agents))
	for _, spec := range req.Agents {
		handle, loadErr := a.agents.Load(ctx, sess.ID, spec.Name, spec)
		if loadErr != nil {
			err = loadErr
			return res, err
		}
		if regErr := a.sessions.RegisterAgent(ctx, sess.ID, spec.Name); regErr != nil {
			err = regErr
			return res, err
		}
		handles = append(handles, handle)
	}

	if err = a.sessions.MarkRunning(ctx, sess.ID); err != nil {
		return res, err
	}
	if err = a.sessions.RegisterWorld(ctx, sess.ID, req.Name); err != nil {
		return res, err
	}

	runResult, runErr := a.worlds.Run(ctx, world.RunRequest{
		SessionID:          sess.ID,
		WorldName:          req.Name,
		Agents:             handles,
		Stimulus:           req.Stimulus,
		Rounds:             req.Rounds,
		CrossCommunication: req.CrossCommunication,
	})
	if runResult != nil {
		res.Records = runResult.Records
		res.Transcript = runResult.Transcript
		res.Source = runResult.Source
		res.Malformed = runResult.Malformed
	}
	if runErr != nil {
		if errors.Is(runErr, core.ErrEngine) {
			if failErr := a.sessions.MarkFailed(context.WithoutCancel(ctx), sess.ID); failErr != nil {
				a.logger.Warn("simulation.mark_failed", "session_id", sess.ID, "error", failErr)
			}
		}
		err = runErr
		return res, err
	}

	if len(res.Records) > 0 {
		if regErr := a.sessions.AddInteractions(ctx, sess.ID, len(res.Records)); regErr != nil {
			err = regErr
			return res, err
		}
	}

	if req.Objective != "" {
		extraction, exErr := a.extractor.Extract(ctx, handles, res.Records, req.Objective)
		if exErr != nil {
			err = exErr
			return res, err
		}
		res.Extraction = extraction
	}

	return res, nil
}
