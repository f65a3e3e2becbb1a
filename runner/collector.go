package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/personasim/core"
)

var (
	// ErrUnknownGoal is returned when collecting a session for a goal that
	// has no slot in the batch.
	ErrUnknownGoal = errors.New("unknown goal")
	// ErrAlreadyCollected is returned on a second write to the same slot.
	ErrAlreadyCollected = errors.New("session already collected for goal")
	// ErrNotTerminal is returned when collecting a running session.
	ErrNotTerminal = errors.New("session is not terminal")
)

// Collector gathers one terminal session per goal. Slots are allocated up
// front by goal id so sessions may finish in any order. It is safe for
// concurrent use.
type Collector struct {
	batch *core.BatchResult
	goals []core.Goal
	index map[string]int

	mu    sync.Mutex
	slots []*core.Session
}

// NewCollector allocates a slot per goal and records the goals on batch.
func NewCollector(batch *core.BatchResult, goals []core.Goal) *Collector {
	c := &Collector{
		batch: batch,
		goals: append([]core.Goal(nil), goals...),
		index: make(map[string]int, len(goals)),
		slots: make([]*core.Session, len(goals)),
	}
	for i, g := range goals {
		c.index[g.ID] = i
	}
	batch.Goals = append([]core.Goal(nil), goals...)
	return c
}

// Collect stores the outcome for goal. Each slot is written once.
func (c *Collector) Collect(goal core.Goal, s *core.Session) error {
	i, ok := c.index[goal.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGoal, goal.ID)
	}
	if s == nil || !s.CurrentStatus().Terminal() {
		return fmt.Errorf("%w: goal %s", ErrNotTerminal, goal.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slots[i] != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyCollected, goal.ID)
	}
	c.slots[i] = s
	return nil
}

// Pending returns how many slots are still empty.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if s == nil {
			n++
		}
	}
	return n
}

// Result finalizes the batch. Empty slots are filled with a failed session
// carrying cause, so the result always holds one terminal session per goal.
// A nil cause defaults to context.Canceled.
func (c *Collector) Result(cause error) *core.BatchResult {
	if cause == nil {
		cause = context.Canceled
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sessions := make([]*core.Session, len(c.slots))
	for i, s := range c.slots {
		if s == nil {
			s = core.NewSession(c.goals[i], c.batch.MaxTurns)
			s.Fail(fmt.Errorf("session not run: %w", cause))
			c.slots[i] = s
		}
		sessions[i] = s
	}
	c.batch.Sessions = sessions
	return c.batch
}
