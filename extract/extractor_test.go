package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/agentsim/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle string

func (h fakeHandle) Name() string { return string(h) }

// extractEngine implements the two primitives Extract exercises; the rest
// are inert.
type extractEngine struct {
	conversed  []string
	converseFn func(ctx context.Context, agent core.AgentHandle, prompt string) error
	extracted  []core.ExtractionRequest
	extractFn  func(ctx context.Context, agent core.AgentHandle, req core.ExtractionRequest) (map[string]any, error)
}

var _ core.Engine = (*extractEngine)(nil)

func (e *extractEngine) BeginSession(context.Context, string, string) error  { return nil }
func (e *extractEngine) CheckpointSession(context.Context, string) error     { return nil }
func (e *extractEngine) EndSession(context.Context, string) error            { return nil }
func (e *extractEngine) Broadcast(context.Context, core.World, string) error { return nil }

func (e *extractEngine) ConstructAgent(_ context.Context, _ string, spec core.AgentSpec) (core.AgentHandle, error) {
	return fakeHandle(spec.Name), nil
}

func (e *extractEngine) CreateWorld(context.Context, core.WorldSpec) (core.World, error) {
	return nil, nil
}

func (e *extractEngine) RunRound(context.Context, core.World) ([]core.Action, error) {
	return nil, nil
}

func (e *extractEngine) RenderTranscript(context.Context, core.World) (string, error) {
	return "", nil
}

func (e *extractEngine) Converse(ctx context.Context, agent core.AgentHandle, prompt string) error {
	e.conversed = append(e.conversed, prompt)
	if e.converseFn != nil {
		return e.converseFn(ctx, agent, prompt)
	}
	return nil
}

func (e *extractEngine) Extract(ctx context.Context, agent core.AgentHandle, req core.ExtractionRequest) (map[string]any, error) {
	e.extracted = append(e.extracted, req)
	if e.extractFn != nil {
		return e.extractFn(ctx, agent, req)
	}
	return map[string]any{"summary": "insights"}, nil
}

func record(agent, utterance string) core.InteractionRecord {
	return core.InteractionRecord{Round: 1, Agent: agent, Utterance: utterance, Source: core.SourceStructured}
}

func agents(names ...string) []core.AgentHandle {
	out := make([]core.AgentHandle, len(names))
	for i, n := range names {
		out[i] = fakeHandle(n)
	}
	return out
}

func TestExtractor_ConsolidatesThenExtracts(t *testing.T) {
	eng := &extractEngine{}
	ex := New(eng)

	result, err := ex.Extract(context.Background(), agents("Alice", "Bob"), []core.InteractionRecord{
		record("Alice", "I love the product quality here"),
		record("Bob", "The pricing feels poor to me honestly"),
	}, "pricing feedback")
	require.NoError(t, err)

	require.Len(t, eng.conversed, 1, "the rapporteur consolidates exactly once")
	assert.Equal(t, DefaultConsolidationPrompt, eng.conversed[0])
	require.Len(t, eng.extracted, 1)
	assert.Equal(t, "pricing feedback", eng.extracted[0].Objective)
	assert.Equal(t, DefaultSituation, eng.extracted[0].Situation)

	assert.Equal(t, map[string]any{"summary": "insights"}, result.Raw)
	assert.Empty(t, result.Error)
	assert.Equal(t, 2, result.Stats.Participants)
	assert.Equal(t, 2, result.Stats.TotalUtterances)
	assert.Equal(t, 1, result.Sentiment.Positive)
	assert.Equal(t, 1, result.Sentiment.Negative)
}

func TestExtractor_NoAgents(t *testing.T) {
	ex := New(&extractEngine{})
	_, err := ex.Extract(context.Background(), nil, nil, "anything")
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestExtractor_SilentRapporteurYieldsZeroStats(t *testing.T) {
	ex := New(&extractEngine{})

	result, err := ex.Extract(context.Background(), agents("Quiet"), nil, "anything")
	require.NoError(t, err, "zero recorded utterances must not raise")

	assert.Zero(t, result.Stats.Participants)
	assert.Zero(t, result.Stats.TotalUtterances)
	assert.Zero(t, result.Stats.MeanUtteranceLength)
	assert.Empty(t, result.Engagement)
	assert.Zero(t, result.Sentiment.Positive+result.Sentiment.Negative+result.Sentiment.Neutral)
	for _, theme := range result.Themes {
		assert.Zero(t, theme.Frequency)
	}
}

func TestExtractor_ConsolidationFailureDegradesGracefully(t *testing.T) {
	eng := &extractEngine{
		converseFn: func(context.Context, core.AgentHandle, string) error {
			return errors.New("rapporteur unreachable")
		},
	}
	ex := New(eng)

	result, err := ex.Extract(context.Background(), agents("Alice"), nil, "objective")
	require.NoError(t, err, "consolidation failure must not abort extraction")
	assert.Len(t, eng.extracted, 1, "extraction still runs on the prior state")
	assert.Equal(t, map[string]any{"summary": "insights"}, result.Raw)
}

func TestExtractor_ExtractionFailureBecomesResultField(t *testing.T) {
	eng := &extractEngine{
		extractFn: func(context.Context, core.AgentHandle, core.ExtractionRequest) (map[string]any, error) {
			return nil, errors.New("schema mismatch")
		},
	}
	ex := New(eng)

	records := []core.InteractionRecord{record("Alice", "a perfectly valid transcript entry")}
	result, err := ex.Extract(context.Background(), agents("Alice"), records, "objective")
	require.NoError(t, err, "extraction failure is downgraded, never raised")

	assert.Nil(t, result.Raw)
	assert.Contains(t, result.Error, "extraction failed")
	assert.Equal(t, 1, result.Stats.TotalUtterances, "the transcript statistics survive the failure")
}

func TestExtractor_EngagementBounds(t *testing.T) {
	ex := New(&extractEngine{})

	var records []core.InteractionRecord
	// Chatty agent: many long utterances should clip at 1.0.
	long := strings.Repeat("elaborate opinion ", 20)
	for i := 0; i < 10; i++ {
		records = append(records, record("Chatty", long))
	}
	records = append(records, record("Terse", "short but valid remark"))

	result, err := ex.Extract(context.Background(), agents("Chatty", "Terse"), records, "objective")
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Engagement["Chatty"])
	terse := result.Engagement["Terse"]
	assert.Greater(t, terse, 0.0)
	assert.Less(t, terse, 1.0)
}

func TestExtractor_SentimentPositiveCheckedFirst(t *testing.T) {
	ex := New(&extractEngine{})

	result, err := ex.Extract(context.Background(), agents("Alice"), []core.InteractionRecord{
		record("Alice", "I love it even though the battery is bad"),
		record("Alice", "completely neutral statement about the weather"),
	}, "objective")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sentiment.Positive, "a mixed utterance counts positive")
	assert.Equal(t, 0, result.Sentiment.Negative)
	assert.Equal(t, 1, result.Sentiment.Neutral)
}

func TestExtractor_OverriddenOptions(t *testing.T) {
	eng := &extractEngine{}
	ex := New(eng, func(o *Options) {
		o.ConsolidationPrompt = "Summarize, please."
		o.Situation = "A moderated debate."
		o.Themes = []string{"Latency"}
	})

	result, err := ex.Extract(context.Background(), agents("Alice"), nil, "objective")
	require.NoError(t, err)
	assert.Equal(t, []string{"Summarize, please."}, eng.conversed)
	assert.Equal(t, "A moderated debate.", eng.extracted[0].Situation)
	require.Len(t, result.Themes, 1)
	assert.Equal(t, "Latency", result.Themes[0].Theme)
}
