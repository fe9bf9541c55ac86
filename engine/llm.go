package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/internal/util"
	"github.com/hupe1980/agentsim/logging"
	"github.com/hupe1980/agentsim/model"
)

// personaTemplate builds the system prompt that turns an agent spec into a
// role-played persona.
const personaTemplate = `You are {{.name}}{{if .age}}, {{.age}} years old{{end}}{{if .occupation}}, working as {{.occupation}}{{end}}.
{{if .personality}}Personality: {{.personality}}.{{end}}
{{if .interests}}Interests: {{.interests}}.{{end}}
You are taking part in a group discussion. Stay in character, speak in first
person and keep contributions to a few sentences. Respond only with what you
would say out loud.`

// extractionFindings is the default shape requested from the model during
// structured extraction. Its reflected JSON schema is embedded in the prompt.
type extractionFindings struct {
	Summary        string   `json:"summary" description:"Concise summary of the discussion"`
	KeyPoints      []string `json:"key_points" description:"Most important points raised, one per perspective"`
	Concerns       []string `json:"concerns" description:"Open concerns or objections voiced"`
	Recommendation string   `json:"recommendation" description:"Actionable recommendation derived from the discussion"`
}

// LLMOptions configure an LLMEngine.
type LLMOptions struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Styled enables ANSI styling on rendered transcripts.
	Styled bool
}

// LLMEngine drives personas through a model.Model provider. Each persona
// keeps its own conversation memory; the world's visibility rules decide what
// each persona sees per round: broadcasts and its own history always, other
// members' prior utterances only with cross-communication enabled.
type LLMEngine struct {
	model    model.Model
	renderer *Renderer
	logger   logging.Logger

	mu       sync.Mutex
	sessions map[string]string
	personas map[string]*llmPersona
	worlds   map[string]*llmWorld
}

var _ core.Engine = (*LLMEngine)(nil)

type llmPersona struct {
	name      string
	sessionID string
	system    string
	memory    []model.Message
}

func (p *llmPersona) Name() string { return p.name }

type llmWorld struct {
	name    string
	members []core.AgentHandle
	cross   bool
	history []TranscriptEvent

	// utterances is the run's speech log, "name: text" per entry. cursors
	// tracks, per member index, how much of the log that member has heard.
	utterances []string
	cursors    []int
}

func (w *llmWorld) Name() string { return w.name }

// NewLLMEngine creates an engine backed by the given model provider.
func NewLLMEngine(m model.Model, optFns ...func(o *LLMOptions)) *LLMEngine {
	opts := LLMOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &LLMEngine{
		model:    m,
		renderer: NewRenderer(func(o *RendererOptions) { o.Styled = opts.Styled }),
		logger:   opts.Logger,
		sessions: make(map[string]string),
		personas: make(map[string]*llmPersona),
		worlds:   make(map[string]*llmWorld),
	}
}

// BeginSession registers the session and its cache file.
func (e *LLMEngine) BeginSession(_ context.Context, sessionID, cacheFile string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[sessionID] = cacheFile
	return nil
}

// CheckpointSession is a no-op: persona memory lives in process, the cache
// file only marks session existence for this reference implementation.
func (e *LLMEngine) CheckpointSession(_ context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return core.NewNotFound("session", sessionID)
	}
	return nil
}

// EndSession discards the session's personas.
func (e *LLMEngine) EndSession(_ context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return core.NewNotFound("session", sessionID)
	}
	delete(e.sessions, sessionID)
	for name, p := range e.personas {
		if p.sessionID == sessionID {
			delete(e.personas, name)
		}
	}
	return nil
}

// ConstructAgent builds a persona whose system prompt is rendered from the
// spec fields.
func (e *LLMEngine) ConstructAgent(_ context.Context, sessionID string, spec core.AgentSpec) (core.AgentHandle, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	system, err := util.RenderTemplate(personaTemplate, map[string]any{
		"name":        core.CleanAgentName(spec.Name),
		"age":         spec.Age,
		"occupation":  spec.Occupation,
		"personality": spec.Personality,
		"interests":   strings.Join(spec.Interests, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("render persona prompt: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return nil, core.NewNotFound("session", sessionID)
	}
	persona := &llmPersona{name: spec.Name, sessionID: sessionID, system: system}
	e.personas[spec.Name] = persona
	return persona, nil
}

// CreateWorld wires the members into a fresh arena.
func (e *LLMEngine) CreateWorld(_ context.Context, spec core.WorldSpec) (core.World, error) {
	if spec.Name == "" {
		return nil, &core.ValidationError{Field: "name", Message: "world name must not be empty"}
	}
	if len(spec.Members) == 0 {
		return nil, &core.ValidationError{Field: "members", Message: "a world requires at least one member"}
	}
	for _, member := range spec.Members {
		if _, ok := member.(*llmPersona); !ok {
			return nil, core.NewNotFound("agent", member.Name())
		}
	}
	world := &llmWorld{
		name:    spec.Name,
		members: append([]core.AgentHandle{}, spec.Members...),
		cross:   spec.CrossCommunication,
		cursors: make([]int, len(spec.Members)),
	}
	e.mu.Lock()
	e.worlds[spec.Name] = world
	e.mu.Unlock()
	return world, nil
}

// Broadcast delivers the stimulus into every member's memory.
func (e *LLMEngine) Broadcast(_ context.Context, world core.World, stimulus string) error {
	w, ok := world.(*llmWorld)
	if !ok {
		return core.NewNotFound("world", world.Name())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, member := range w.members {
		p := member.(*llmPersona)
		p.memory = append(p.memory, model.Message{Role: "user", Text: stimulus})
		w.history = append(w.history, stimulusEvent(p.name, stimulus))
	}
	return nil
}

// RunRound gives every member one generation opportunity, in member order.
// With cross-communication each persona first hears what the others said
// earlier in the run.
func (e *LLMEngine) RunRound(ctx context.Context, world core.World) ([]core.Action, error) {
	w, ok := world.(*llmWorld)
	if !ok {
		return nil, core.NewNotFound("world", world.Name())
	}

	var actions []core.Action
	for i, member := range w.members {
		p := member.(*llmPersona)

		e.mu.Lock()
		if w.cross {
			for _, heard := range w.utterances[w.cursors[i]:] {
				if !strings.HasPrefix(heard, p.name+": ") {
					p.memory = append(p.memory, model.Message{Role: "user", Text: heard})
				}
			}
			w.cursors[i] = len(w.utterances)
		}
		req := model.Request{Instructions: p.system, Messages: append([]model.Message{}, p.memory...)}
		e.mu.Unlock()

		text, err := e.complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("generate for %s: %w", p.name, err)
		}

		e.mu.Lock()
		p.memory = append(p.memory, model.Message{Role: "assistant", Text: text})
		if w.cross {
			w.utterances = append(w.utterances, p.name+": "+text)
			w.cursors[i] = len(w.utterances)
		}
		w.history = append(w.history, actionEvent(p.name, core.ActionTalk, text))
		e.mu.Unlock()

		actions = append(actions, core.Action{
			Agent:   p.name,
			Payload: map[string]any{"type": core.ActionTalk, "content": text},
		})
	}
	return actions, nil
}

// RenderTranscript renders the world's history through the shared renderer.
func (e *LLMEngine) RenderTranscript(_ context.Context, world core.World) (string, error) {
	w, ok := world.(*llmWorld)
	if !ok {
		return "", core.NewNotFound("world", world.Name())
	}
	e.mu.Lock()
	history := append([]TranscriptEvent{}, w.history...)
	e.mu.Unlock()
	return e.renderer.Render(history), nil
}

// Converse delivers a prompt to one persona and stores its reply.
func (e *LLMEngine) Converse(ctx context.Context, agent core.AgentHandle, prompt string) error {
	p, ok := agent.(*llmPersona)
	if !ok {
		return core.NewNotFound("agent", agent.Name())
	}

	e.mu.Lock()
	p.memory = append(p.memory, model.Message{Role: "user", Text: prompt})
	req := model.Request{Instructions: p.system, Messages: append([]model.Message{}, p.memory...)}
	e.mu.Unlock()

	text, err := e.complete(ctx, req)
	if err != nil {
		return err
	}

	e.mu.Lock()
	p.memory = append(p.memory, model.Message{Role: "assistant", Text: text})
	e.mu.Unlock()
	return nil
}

// extractionToolName is the function exposed to the model so it can hand back
// structured findings instead of free-form prose.
const extractionToolName = "record_findings"

// Extract asks the model for findings matching the schema. The schema is
// offered as a callable tool so providers with function calling return the
// findings as structured arguments; a plain text reply is parsed as JSON, and
// a reply that fails to parse is preserved under "raw_text" instead of being
// discarded.
func (e *LLMEngine) Extract(ctx context.Context, agent core.AgentHandle, req core.ExtractionRequest) (map[string]any, error) {
	p, ok := agent.(*llmPersona)
	if !ok {
		return nil, core.NewNotFound("agent", agent.Name())
	}

	schema := util.CreateSchema(extractionFindings{})
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode extraction schema: %w", err)
	}
	prompt := fmt.Sprintf(
		"Context: %s\nObjective: %s\n\nBased on the discussion so far, call %s with your findings, or respond with a single JSON object matching this schema and nothing else:\n%s",
		req.Situation, req.Objective, extractionToolName, string(schemaJSON))

	e.mu.Lock()
	messages := append(append([]model.Message{}, p.memory...), model.Message{Role: "user", Text: prompt})
	request := model.Request{
		Instructions: p.system,
		Messages:     messages,
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        extractionToolName,
				Description: "Record the structured findings of the discussion.",
				Parameters:  schema,
			},
		}},
	}
	e.mu.Unlock()

	resp, err := e.generate(ctx, request)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	for _, call := range resp.ToolCalls {
		if call.Function.Name != extractionToolName {
			continue
		}
		if err := json.Unmarshal(call.Function.Arguments, &out); err == nil {
			return out, nil
		}
		e.logger.Warn("engine.extract.bad_tool_arguments", "agent", p.name, "tool", call.Function.Name)
	}

	text := strings.TrimSpace(resp.Text)
	if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil {
		e.logger.Warn("engine.extract.unparsable", "agent", p.name, "error", err)
		return map[string]any{"raw_text": text}, nil
	}
	return out, nil
}

// complete drains one model generation and returns the final text.
func (e *LLMEngine) complete(ctx context.Context, req model.Request) (string, error) {
	resp, err := e.generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// generate drains one model generation and returns the final response chunk,
// which carries the accumulated text and any completed tool calls.
func (e *LLMEngine) generate(ctx context.Context, req model.Request) (model.Response, error) {
	respCh, errCh := e.model.Generate(ctx, req)
	var final model.Response
	for resp := range respCh {
		if !resp.Partial {
			final = resp
		}
	}
	if err := <-errCh; err != nil {
		return model.Response{}, err
	}
	return final, nil
}

// extractJSON trims the first balanced JSON object out of a model reply that
// may wrap it in prose or code fences.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
