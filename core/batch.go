package core

import "time"

// BatchResult holds every session produced for one persona/agent pair. It
// contains exactly one terminal session per goal, in goal order.
type BatchResult struct {
	ID            string           `json:"id"`
	PersonaID     string           `json:"persona_id"`
	AgentConfigID string           `json:"agent_config_id"`
	NumGoals      int              `json:"num_goals"`
	MaxTurns      int              `json:"max_turns"`
	CreatedAt     time.Time        `json:"created_at"`
	Goals         []Goal           `json:"goals"`
	Sessions      []*Session       `json:"sessions"`
	Error         *ErrorDescriptor `json:"error,omitempty"`
}

// NewBatchResult creates an empty result for the pair.
func NewBatchResult(personaID, agentConfigID string, numGoals, maxTurns int) *BatchResult {
	return &BatchResult{
		ID:            NewID(),
		PersonaID:     personaID,
		AgentConfigID: agentConfigID,
		NumGoals:      numGoals,
		MaxTurns:      maxTurns,
		CreatedAt:     time.Now().UTC(),
		Goals:         []Goal{},
		Sessions:      []*Session{},
	}
}

// Counts tallies sessions by status.
func (b *BatchResult) Counts() map[Status]int {
	counts := map[Status]int{}
	for _, s := range b.Sessions {
		counts[s.CurrentStatus()]++
	}
	return counts
}

// Failed reports whether the batch failed before any session could run.
func (b *BatchResult) Failed() bool { return b.Error != nil }
