package runner

import (
	"context"
	"testing"

	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goalsN(n int) []core.Goal {
	goals := make([]core.Goal, n)
	for i := range goals {
		goals[i] = core.Goal{ID: core.NewID(), Index: i, Text: "goal", FaithType: core.GoodFaith}
	}
	return goals
}

func TestCollector_OutOfOrder(t *testing.T) {
	goals := goalsN(3)
	batch := core.NewBatchResult("p1", "a1", 3, 4)
	c := NewCollector(batch, goals)

	s2 := testutil.NewSessionBuilder(goals[2]).MaxTurns(4).Texts("a", "b").Completed().Build()
	s0 := testutil.NewSessionBuilder(goals[0]).MaxTurns(4).Failed(context.DeadlineExceeded).Build()
	s1 := testutil.NewSessionBuilder(goals[1]).MaxTurns(4).Texts("a").EndedBy(core.SpeakerPersona).Build()

	require.NoError(t, c.Collect(goals[2], s2))
	require.NoError(t, c.Collect(goals[0], s0))
	require.NoError(t, c.Collect(goals[1], s1))
	assert.Equal(t, 0, c.Pending())

	res := c.Result(nil)
	require.Len(t, res.Sessions, 3)
	assert.Same(t, s0, res.Sessions[0])
	assert.Same(t, s1, res.Sessions[1])
	assert.Same(t, s2, res.Sessions[2])
	assert.Equal(t, goals, res.Goals)
}

func TestCollector_Rejects(t *testing.T) {
	goals := goalsN(1)
	c := NewCollector(core.NewBatchResult("p1", "a1", 1, 4), goals)

	running := core.NewSession(goals[0], 4)
	assert.ErrorIs(t, c.Collect(goals[0], running), ErrNotTerminal)
	assert.ErrorIs(t, c.Collect(goals[0], nil), ErrNotTerminal)

	stranger := core.Goal{ID: "nope"}
	done := testutil.NewSessionBuilder(stranger).Completed().Build()
	assert.ErrorIs(t, c.Collect(stranger, done), ErrUnknownGoal)

	first := testutil.NewSessionBuilder(goals[0]).Completed().Build()
	require.NoError(t, c.Collect(goals[0], first))
	second := testutil.NewSessionBuilder(goals[0]).Completed().Build()
	assert.ErrorIs(t, c.Collect(goals[0], second), ErrAlreadyCollected)

	assert.Same(t, first, c.Result(nil).Sessions[0])
}

func TestCollector_ResultFillsEmptySlots(t *testing.T) {
	goals := goalsN(3)
	c := NewCollector(core.NewBatchResult("p1", "a1", 3, 6), goals)
	done := testutil.NewSessionBuilder(goals[1]).MaxTurns(6).Texts("hi", "hello").Completed().Build()
	require.NoError(t, c.Collect(goals[1], done))
	assert.Equal(t, 2, c.Pending())

	res := c.Result(context.Canceled)
	require.Len(t, res.Sessions, 3)
	for i, s := range res.Sessions {
		assert.True(t, s.Status.Terminal())
		assert.Equal(t, goals[i].ID, s.GoalID)
	}
	assert.Same(t, done, res.Sessions[1])
	for _, i := range []int{0, 2} {
		require.NotNil(t, res.Sessions[i].Error)
		assert.Equal(t, core.KindCanceled, res.Sessions[i].Error.Kind)
		assert.Equal(t, 6, res.Sessions[i].MaxTurns)
		assert.Empty(t, res.Sessions[i].Turns)
	}

	timedOut := NewCollector(core.NewBatchResult("p1", "a1", 1, 2), goalsN(1)).Result(context.DeadlineExceeded)
	assert.Equal(t, core.KindTimeout, timedOut.Sessions[0].Error.Kind)
}
