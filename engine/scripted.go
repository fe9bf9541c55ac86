package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/logging"
)

// ScriptedOptions configure a ScriptedEngine.
type ScriptedOptions struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Styled enables ANSI styling on rendered transcripts.
	Styled bool
}

// ScriptedEngine is a deterministic core.Engine for tests and demos. Each
// persona replays the utterances registered via Script, one per round, and
// thinks quietly once its script runs out. Sessions, agents and worlds live
// in guarded maps; CheckpointSession flushes a JSON snapshot of session state
// into the cache file so checkpoint payloads are real.
type ScriptedEngine struct {
	renderer *Renderer
	logger   logging.Logger

	mu       sync.Mutex
	sessions map[string]string          // session id -> cache file
	scripts  map[string][]string        // base display name -> utterances per round
	agents   map[string]*scriptedAgent  // qualified name -> agent
	worlds   map[string]*scriptedWorld  // world name -> world
}

var _ core.Engine = (*ScriptedEngine)(nil)

type scriptedAgent struct {
	name      string
	sessionID string
	spec      core.AgentSpec
	heard     []string // conversed prompts, in order
}

func (a *scriptedAgent) Name() string { return a.name }

type scriptedWorld struct {
	name    string
	members []core.AgentHandle
	cross   bool
	round   int
	history []TranscriptEvent
}

func (w *scriptedWorld) Name() string { return w.name }

// NewScriptedEngine creates an empty scripted engine.
func NewScriptedEngine(optFns ...func(o *ScriptedOptions)) *ScriptedEngine {
	opts := ScriptedOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &ScriptedEngine{
		renderer: NewRenderer(func(o *RendererOptions) { o.Styled = opts.Styled }),
		logger:   opts.Logger,
		sessions: make(map[string]string),
		scripts:  make(map[string][]string),
		agents:   make(map[string]*scriptedAgent),
		worlds:   make(map[string]*scriptedWorld),
	}
}

// Script registers the persona's utterances, one per round, keyed by the base
// (unqualified) display name. A persona without a script only thinks.
func (e *ScriptedEngine) Script(name string, lines ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[name] = append([]string{}, lines...)
}

// BeginSession registers the session and its cache file.
func (e *ScriptedEngine) BeginSession(_ context.Context, sessionID, cacheFile string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[sessionID] = cacheFile
	return nil
}

// CheckpointSession flushes a JSON snapshot of the session's agents into the
// cache file so the session manager snapshots complete state.
func (e *ScriptedEngine) CheckpointSession(_ context.Context, sessionID string) error {
	e.mu.Lock()
	cacheFile, ok := e.sessions[sessionID]
	var names []string
	for _, a := range e.agents {
		if a.sessionID == sessionID {
			names = append(names, a.name)
		}
	}
	e.mu.Unlock()
	if !ok {
		return core.NewNotFound("session", sessionID)
	}
	if cacheFile == "" {
		return nil
	}

	state := map[string]any{"session_id": sessionID, "agents": names}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode engine state: %w", err)
	}
	if err := os.WriteFile(cacheFile, raw, 0o644); err != nil {
		return fmt.Errorf("flush engine state: %w", err)
	}
	return nil
}

// EndSession discards the session's agents and registration.
func (e *ScriptedEngine) EndSession(_ context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return core.NewNotFound("session", sessionID)
	}
	delete(e.sessions, sessionID)
	for name, a := range e.agents {
		if a.sessionID == sessionID {
			delete(e.agents, name)
		}
	}
	return nil
}

// ConstructAgent builds a scripted persona under its qualified display name.
func (e *ScriptedEngine) ConstructAgent(_ context.Context, sessionID string, spec core.AgentSpec) (core.AgentHandle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return nil, core.NewNotFound("session", sessionID)
	}
	agent := &scriptedAgent{name: spec.Name, sessionID: sessionID, spec: spec}
	e.agents[spec.Name] = agent
	return agent, nil
}

// CreateWorld wires the members into a fresh arena.
func (e *ScriptedEngine) CreateWorld(_ context.Context, spec core.WorldSpec) (core.World, error) {
	if spec.Name == "" {
		return nil, &core.ValidationError{Field: "name", Message: "world name must not be empty"}
	}
	if len(spec.Members) == 0 {
		return nil, &core.ValidationError{Field: "members", Message: "a world requires at least one member"}
	}
	world := &scriptedWorld{
		name:    spec.Name,
		members: append([]core.AgentHandle{}, spec.Members...),
		cross:   spec.CrossCommunication,
	}
	e.mu.Lock()
	e.worlds[spec.Name] = world
	e.mu.Unlock()
	return world, nil
}

// Broadcast records the stimulus delivery to every member.
func (e *ScriptedEngine) Broadcast(_ context.Context, world core.World, stimulus string) error {
	w, err := e.lookupWorld(world)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, member := range w.members {
		w.history = append(w.history, stimulusEvent(member.Name(), stimulus))
	}
	return nil
}

// RunRound advances the arena one round: every member replays its next
// scripted line, or thinks when the script is exhausted.
func (e *ScriptedEngine) RunRound(ctx context.Context, world core.World) ([]core.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := e.lookupWorld(world)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	w.round++

	var actions []core.Action
	for _, member := range w.members {
		script := e.scripts[core.CleanAgentName(member.Name())]
		kind, content := core.ActionThink, "Nothing more to add this round."
		if w.round <= len(script) {
			kind, content = core.ActionTalk, script[w.round-1]
		}
		w.history = append(w.history, actionEvent(member.Name(), kind, content))
		actions = append(actions, core.Action{
			Agent:   member.Name(),
			Payload: map[string]any{"type": kind, "content": content},
		})
	}
	return actions, nil
}

// RenderTranscript renders the world's history through the shared renderer.
func (e *ScriptedEngine) RenderTranscript(_ context.Context, world core.World) (string, error) {
	w, err := e.lookupWorld(world)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	history := append([]TranscriptEvent{}, w.history...)
	e.mu.Unlock()
	return e.renderer.Render(history), nil
}

// Converse records the prompt on the agent's memory.
func (e *ScriptedEngine) Converse(_ context.Context, agent core.AgentHandle, prompt string) error {
	a, ok := agent.(*scriptedAgent)
	if !ok {
		return core.NewNotFound("agent", agent.Name())
	}
	e.mu.Lock()
	a.heard = append(a.heard, prompt)
	e.mu.Unlock()
	return nil
}

// Extract returns a deterministic digest of the agent's scripted state.
func (e *ScriptedEngine) Extract(_ context.Context, agent core.AgentHandle, req core.ExtractionRequest) (map[string]any, error) {
	a, ok := agent.(*scriptedAgent)
	if !ok {
		return nil, core.NewNotFound("agent", agent.Name())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	script := e.scripts[core.CleanAgentName(a.name)]
	return map[string]any{
		"objective":      req.Objective,
		"situation":      req.Situation,
		"rapporteur":     core.CleanAgentName(a.name),
		"scripted_lines": len(script),
		"consolidations": len(a.heard),
	}, nil
}

func (e *ScriptedEngine) lookupWorld(world core.World) (*scriptedWorld, error) {
	w, ok := world.(*scriptedWorld)
	if !ok || w == nil {
		return nil, core.NewNotFound("world", "")
	}
	return w, nil
}
