package agentsim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/engine"
)

func newScriptedSim(t *testing.T) (*AgentSim, *engine.ScriptedEngine) {
	t.Helper()
	e := engine.NewScriptedEngine()
	sim := New(e, func(o *Options) {
		o.CacheDir = t.TempDir()
	})
	return sim, e
}

func TestRunSimulation_TwoAgentsTwoRounds(t *testing.T) {
	sim, e := newScriptedSim(t)
	e.Script("Alice", "I really like the overall concept.", "The onboarding flow feels smooth.")
	e.Script("Bob", "The pricing seems too high for me.", "I would wait for a discount.")

	res, err := sim.RunSimulation(context.Background(), SimulationRequest{
		Name:     "focus-group",
		Agents:   []core.AgentSpec{{Name: "Alice"}, {Name: "Bob"}},
		Stimulus: "What do you think about the new product?",
		Rounds:   2,
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 4)
	assert.Equal(t, core.SourceStructured, res.Source)
	assert.Equal(t, []string{"Alice", "Bob", "Alice", "Bob"}, []string{
		res.Records[0].Agent, res.Records[1].Agent, res.Records[2].Agent, res.Records[3].Agent,
	})
	assert.Equal(t, 1, res.Records[0].Round)
	assert.Equal(t, 2, res.Records[3].Round)
	assert.Equal(t, "I really like the overall concept.", res.Records[0].Utterance)

	assert.Contains(t, res.Transcript, "acts: [TALK]")
	require.NotNil(t, res.Summary)
	assert.Equal(t, core.SessionCompleted, res.Summary.Status)
	assert.Equal(t, 4, res.Summary.Interactions)

	// The session is gone once the run completes.
	_, err = sim.Sessions().Get(context.Background(), res.Session.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRunSimulation_ThinkOnlyAgentYieldsNoRecords(t *testing.T) {
	sim, _ := newScriptedSim(t)

	res, err := sim.RunSimulation(context.Background(), SimulationRequest{
		Name:     "quiet-panel",
		Agents:   []core.AgentSpec{{Name: "Silent"}},
		Stimulus: "Any thoughts?",
		Rounds:   2,
	})
	require.NoError(t, err)

	assert.Empty(t, res.Records)
	// The fallback parser was consulted and found nothing either.
	assert.Equal(t, core.SourceParsedFallback, res.Source)
	assert.Contains(t, res.Transcript, "acts: [THINK]")
	require.NotNil(t, res.Summary)
	assert.Equal(t, 0, res.Summary.Interactions)
}

func TestRunSimulation_WithExtraction(t *testing.T) {
	sim, e := newScriptedSim(t)
	e.Script("Alice", "I love the design, it looks great.")
	e.Script("Bob", "The product feels bad and overpriced.")

	res, err := sim.RunSimulation(context.Background(), SimulationRequest{
		Name:      "extract-run",
		Agents:    []core.AgentSpec{{Name: "Alice"}, {Name: "Bob"}},
		Stimulus:  "Opinions please.",
		Rounds:    1,
		Objective: "main findings",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Extraction)
	assert.Empty(t, res.Extraction.Error)
	assert.Equal(t, "Alice", res.Extraction.Raw["rapporteur"])
	assert.Equal(t, 1, res.Extraction.Raw["consolidations"])
	assert.Equal(t, 2, res.Extraction.Stats.Participants)
	assert.Equal(t, 2, res.Extraction.Stats.TotalUtterances)
	assert.Equal(t, 1, res.Extraction.Sentiment.Positive)
	assert.Equal(t, 1, res.Extraction.Sentiment.Negative)
}

func TestRunSimulation_SkipsExtractionWithoutObjective(t *testing.T) {
	sim, e := newScriptedSim(t)
	e.Script("Alice", "Nothing controversial to report.")

	res, err := sim.RunSimulation(context.Background(), SimulationRequest{
		Name:   "no-extract",
		Agents: []core.AgentSpec{{Name: "Alice"}},
		Rounds: 1,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Extraction)
}

func TestRunSimulation_Validation(t *testing.T) {
	sim, _ := newScriptedSim(t)

	_, err := sim.RunSimulation(context.Background(), SimulationRequest{Name: "x", Rounds: 1})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = sim.RunSimulation(context.Background(), SimulationRequest{
		Name:   "x",
		Agents: []core.AgentSpec{{Name: "Alice"}},
		Rounds: 0,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	nilSim := New(nil)
	_, err = nilSim.RunSimulation(context.Background(), SimulationRequest{
		Name:   "x",
		Agents: []core.AgentSpec{{Name: "Alice"}},
		Rounds: 1,
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

// failingRoundEngine fails every RunRound while the rest of the engine
// behaves normally.
type failingRoundEngine struct {
	*engine.ScriptedEngine
}

func (e *failingRoundEngine) RunRound(context.Context, core.World) ([]core.Action, error) {
	return nil, errors.New("backend unavailable")
}

func TestRunSimulation_EngineFailureMarksSessionFailed(t *testing.T) {
	e := &failingRoundEngine{ScriptedEngine: engine.NewScriptedEngine()}
	sim := New(e, func(o *Options) {
		o.CacheDir = t.TempDir()
	})

	res, err := sim.RunSimulation(context.Background(), SimulationRequest{
		Name:     "doomed",
		Agents:   []core.AgentSpec{{Name: "Alice"}},
		Stimulus: "Hello?",
		Rounds:   1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEngine)

	// The partial result still carries the failed session's summary.
	require.NotNil(t, res)
	require.NotNil(t, res.Summary)
	assert.Equal(t, core.SessionFailed, res.Summary.Status)
}

// cancellingRoundEngine cancels the caller's context from inside RunRound
// before failing, mimicking a backend abort that tears down the request
// context mid-simulation.
type cancellingRoundEngine struct {
	*engine.ScriptedEngine
	cancel context.CancelFunc
}

func (e *cancellingRoundEngine) RunRound(context.Context, core.World) ([]core.Action, error) {
	e.cancel()
	return nil, errors.New("aborted")
}

func TestRunSimulation_CancelledContextStillEndsSession(t *testing.T) {
	// Teardown must not race the cancelled context, so repeat the run a
	// few times to shake out any ordering dependence.
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		e := &cancellingRoundEngine{ScriptedEngine: engine.NewScriptedEngine(), cancel: cancel}
		sim := New(e, func(o *Options) {
			o.CacheDir = t.TempDir()
		})

		res, err := sim.RunSimulation(ctx, SimulationRequest{
			Name:     "aborted-run",
			Agents:   []core.AgentSpec{{Name: "Alice"}},
			Stimulus: "Hello?",
			Rounds:   1,
		})
		cancel()
		require.Error(t, err)
		require.NotNil(t, res)
		require.NotNil(t, res.Summary)
		assert.Equal(t, core.SessionFailed, res.Summary.Status)

		_, getErr := sim.Sessions().Get(context.Background(), res.Session.ID)
		assert.ErrorIs(t, getErr, core.ErrNotFound)
		assert.NoFileExists(t, res.Session.CacheFile)
	}
}

func TestAccessors(t *testing.T) {
	sim, _ := newScriptedSim(t)
	assert.NotNil(t, sim.Sessions())
	assert.NotNil(t, sim.Agents())
	assert.NotNil(t, sim.Worlds())
	assert.NotNil(t, sim.Extractor())
}
