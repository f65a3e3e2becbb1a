package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/goal"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/internal/testutil"
	"github.com/hupe1980/personasim/model"
	"github.com/hupe1980/personasim/persona"
	"github.com/hupe1980/personasim/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goalReply(n int) string {
	items := make([]string, n)
	for i := range items {
		faith := "good"
		if i%2 == 1 {
			faith = "bad"
		}
		items[i] = fmt.Sprintf(`{"goal": "objective number %d", "faith_type": %q}`, i+1, faith)
	}
	return `{"goals": [` + strings.Join(items, ",") + `]}`
}

type fixture struct {
	personas *persona.InMemoryStore
	agents   *config.Registry
	genModel *testutil.ScriptedModel
	user     *testutil.ScriptedModel
	agent    *testutil.ScriptedModel
}

func newFixture(numGoals int) *fixture {
	return &fixture{
		personas: persona.NewInMemoryStore(
			testutil.NewPersonaBuilder("kenya_01").Build(),
			testutil.NewPersonaBuilder("no_religion").WithoutDemographic("religion").Build(),
		),
		agents:   config.NewRegistry(testutil.AgentConfig("coach")),
		genModel: testutil.NewScriptedModel("generator").Always(testutil.Reply(goalReply(numGoals))),
		user:     testutil.NewScriptedModel("persona").Always(testutil.Reply("Tell me more.")),
		agent:    testutil.NewScriptedModel("agent").Always(testutil.Reply("Happy to help.")),
	}
}

func (f *fixture) runner(optFns ...func(o *Options)) *Runner {
	gen := goal.NewGenerator(f.genModel, nil, func(o *goal.Options) { o.Backoff = 0 })
	fns := append([]func(o *Options){func(o *Options) {
		o.AgentModel = func(*core.AgentConfig) (model.Model, error) { return f.agent, nil }
	}}, optFns...)
	return New(f.personas, f.agents, gen, f.user, fns...)
}

func TestRunBatch(t *testing.T) {
	f := newFixture(4)
	store := results.NewInMemoryStore()
	collector := metrics.NewCollector("")

	var (
		mu     sync.Mutex
		stages []string
		last   int
	)
	r := f.runner(func(o *Options) {
		o.Concurrency = 2
		o.Results = store
		o.Metrics = collector
		o.Progress = func(stage string, percent int) {
			mu.Lock()
			defer mu.Unlock()
			assert.GreaterOrEqual(t, percent, last)
			last = percent
			stages = append(stages, stage)
		}
	})

	res, err := r.RunBatch(context.Background(), BatchRequest{
		PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 4, MaxTurns: 4,
	})
	require.NoError(t, err)
	require.Nil(t, res.Error)

	assert.Equal(t, "kenya_01", res.PersonaID)
	assert.Equal(t, "coach", res.AgentConfigID)
	require.Len(t, res.Goals, 4)
	require.Len(t, res.Sessions, 4)
	for i, s := range res.Sessions {
		assert.Equal(t, res.Goals[i].ID, s.GoalID)
		assert.Equal(t, core.StatusCompleted, s.Status)
		assert.Len(t, s.Turns, 4)
	}
	assert.Equal(t, 8, f.user.Calls())
	assert.Equal(t, 8, f.agent.Calls())

	saved, err := store.Get(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Sessions, 4)

	assert.Equal(t, StageLoadedConfigs, stages[0])
	assert.Equal(t, StageDone, stages[len(stages)-1])
	assert.Equal(t, 100, last)
	assert.Empty(t, r.Active())
}

func TestRunBatch_ConversationsPerGoal(t *testing.T) {
	f := newFixture(2)
	r := f.runner(func(o *Options) { o.ConversationsPerGoal = 3 })

	res, err := r.RunBatch(context.Background(), BatchRequest{
		PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2,
	})
	require.NoError(t, err)
	require.Len(t, res.Goals, 6)
	require.Len(t, res.Sessions, 6)

	ids := map[string]bool{}
	for i, g := range res.Goals {
		assert.Equal(t, i, g.Index)
		ids[g.ID] = true
	}
	assert.Len(t, ids, 6)
	assert.Equal(t, res.Goals[0].Text, res.Goals[2].Text)
	assert.Equal(t, res.Goals[0].FaithType, res.Goals[1].FaithType)
	assert.NotEqual(t, res.Goals[0].Text, res.Goals[3].Text)

	res, err = r.RunBatch(context.Background(), BatchRequest{
		PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2, ConversationsPerGoal: 1,
	})
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 2)
}

func TestRunBatch_RequestErrors(t *testing.T) {
	f := newFixture(1)
	r := f.runner()
	ctx := context.Background()

	tests := []struct {
		name string
		req  BatchRequest
		want error
	}{
		{"no persona", BatchRequest{AgentConfigID: "coach", NumGoals: 1, MaxTurns: 2}, ErrInvalidRequest},
		{"no goals", BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", MaxTurns: 2}, ErrInvalidRequest},
		{"no turns", BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 1}, ErrInvalidRequest},
		{"mix mismatch", BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2, Mix: goal.FaithMix{GoodFaith: 3}}, ErrInvalidRequest},
		{"unknown persona", BatchRequest{PersonaID: "ghost", AgentConfigID: "coach", NumGoals: 1, MaxTurns: 2}, persona.ErrNotFound},
		{"unknown agent", BatchRequest{PersonaID: "kenya_01", AgentConfigID: "ghost", NumGoals: 1, MaxTurns: 2}, config.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.RunBatch(ctx, tt.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.genModel.Calls())
}

func TestRunBatch_UnknownHubIsConfigError(t *testing.T) {
	f := newFixture(1)
	cfg := testutil.AgentConfig("remote")
	cfg.LLM.Hub = "carrier-pigeon"
	f.agents.Add(cfg)

	gen := goal.NewGenerator(f.genModel, nil)
	r := New(f.personas, f.agents, gen, f.user)

	_, err := r.RunBatch(context.Background(), BatchRequest{PersonaID: "kenya_01", AgentConfigID: "remote", NumGoals: 1, MaxTurns: 2})
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "llm.hub", cfgErr.Key)
}

// A goal generation failure is reported in the result, not returned.
func TestRunBatch_GoalGenerationFailure(t *testing.T) {
	f := newFixture(1)
	f.genModel = testutil.NewScriptedModel("generator").Always(testutil.Reply(goalReply(1)))
	store := results.NewInMemoryStore()
	r := f.runner(func(o *Options) { o.Results = store })

	res, err := r.RunBatch(context.Background(), BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 3, MaxTurns: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, core.KindGoalGeneration, res.Error.Kind)
	assert.Equal(t, goal.DefaultMaxAttempts, res.Error.Attempts)
	assert.NotEmpty(t, res.Error.RawResponse)
	assert.Empty(t, res.Sessions)
	assert.Equal(t, 0, f.user.Calls())

	_, err = store.Get(context.Background(), res.ID)
	assert.NoError(t, err)
}

// Scenario B: one pair's templates reference a variable its persona lacks.
// That pair fails on its own; sibling pairs still produce full results.
func TestRunBatches_MissingVariableIsScoped(t *testing.T) {
	f := newFixture(2)
	r := f.runner()

	out := r.RunBatches(context.Background(), []BatchRequest{
		{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2},
		{PersonaID: "no_religion", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2},
		{PersonaID: "ghost", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2},
		{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2},
	})
	require.Len(t, out, 4)

	for _, i := range []int{0, 3} {
		require.Nil(t, out[i].Error)
		require.Len(t, out[i].Sessions, 2)
		for _, s := range out[i].Sessions {
			assert.Equal(t, core.StatusCompleted, s.Status)
		}
	}

	require.NotNil(t, out[1].Error)
	assert.Equal(t, core.KindMissingVariable, out[1].Error.Kind)
	assert.Contains(t, out[1].Error.Message, "religion")
	assert.Equal(t, "no_religion", out[1].PersonaID)

	require.NotNil(t, out[2].Error)
	assert.Equal(t, core.KindNotFound, out[2].Error.Kind)
}

// An agent prompt with an unknown variable fails every session, but the
// result still holds one terminal session per goal.
func TestRunBatch_AgentTemplateMissingVariable(t *testing.T) {
	f := newFixture(3)
	cfg := testutil.AgentConfig("broken")
	cfg.SystemPrompt = "You serve ${unknown_field}."
	f.agents.Add(cfg)
	r := f.runner()

	res, err := r.RunBatch(context.Background(), BatchRequest{PersonaID: "kenya_01", AgentConfigID: "broken", NumGoals: 3, MaxTurns: 4})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 3)
	for _, s := range res.Sessions {
		assert.Equal(t, core.StatusFailed, s.Status)
		assert.Equal(t, core.KindMissingVariable, s.Error.Kind)
	}
	assert.Equal(t, 0, f.agent.Calls())
}

func TestRunBatch_SessionFailureDoesNotAffectSiblings(t *testing.T) {
	f := newFixture(3)
	boom := &model.ProviderError{Type: model.KindAuthFailure, Provider: "scripted", Err: errors.New("bad key")}
	var calls int
	var mu sync.Mutex
	f.agent = testutil.NewScriptedModel("agent").Always(testutil.Step{Func: func(_ context.Context, req model.Request) (*model.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 2 {
			return nil, boom
		}
		return &model.Response{Text: "ok"}, nil
	}})
	r := f.runner(func(o *Options) { o.Concurrency = 1 })

	res, err := r.RunBatch(context.Background(), BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 3, MaxTurns: 2})
	require.NoError(t, err)
	counts := res.Counts()
	assert.Equal(t, 2, counts[core.StatusCompleted])
	assert.Equal(t, 1, counts[core.StatusFailed])
	assert.Equal(t, core.KindAuthFailure, res.Sessions[1].Error.Kind)
}

func TestRunBatch_Cancellation(t *testing.T) {
	f := newFixture(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.agent = testutil.NewScriptedModel("agent",
		testutil.Reply("Done with the first one."),
		testutil.Step{Func: func(ctx context.Context, _ model.Request) (*model.Response, error) {
			cancel()
			<-ctx.Done()
			return nil, model.NormalizeError("scripted", ctx.Err())
		}},
	)
	r := f.runner(func(o *Options) { o.Concurrency = 1 })

	res, err := r.RunBatch(ctx, BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 3, MaxTurns: 2})
	require.NoError(t, err)
	require.Len(t, res.Sessions, 3)

	first := res.Sessions[0]
	assert.Equal(t, core.StatusCompleted, first.Status)
	assert.Len(t, first.Turns, 2)

	for _, s := range res.Sessions[1:] {
		assert.Equal(t, core.StatusFailed, s.Status)
		require.NotNil(t, s.Error)
		assert.Equal(t, core.KindCanceled, s.Error.Kind)
	}
	assert.Equal(t, 2, f.agent.Calls())
}

func TestRunner_Cancel(t *testing.T) {
	f := newFixture(2)
	var r *Runner
	f.agent = testutil.NewScriptedModel("agent").Always(testutil.Step{Func: func(ctx context.Context, _ model.Request) (*model.Response, error) {
		for _, id := range r.Active() {
			assert.NoError(t, r.Cancel(id))
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	r = f.runner()

	res, err := r.RunBatch(context.Background(), BatchRequest{PersonaID: "kenya_01", AgentConfigID: "coach", NumGoals: 2, MaxTurns: 2})
	require.NoError(t, err)
	for _, s := range res.Sessions {
		assert.Equal(t, core.KindCanceled, s.Error.Kind)
	}
	assert.Error(t, r.Cancel(res.ID))
}

func TestRepeatGoals(t *testing.T) {
	goals := goalsN(2)
	assert.Equal(t, goals, repeatGoals(goals, 1))

	out := repeatGoals(goals, 2)
	require.Len(t, out, 4)
	assert.Equal(t, goals[0].ID, out[0].ID)
	assert.NotEqual(t, goals[0].ID, out[1].ID)
	assert.Equal(t, goals[1].ID, out[2].ID)
	assert.Equal(t, 3, out[3].Index)
}
