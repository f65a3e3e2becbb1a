package core

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	// StatusRunning marks a session that is still producing turns.
	StatusRunning Status = "running"
	// StatusCompleted marks a session that reached its turn limit or a stop signal.
	StatusCompleted Status = "completed"
	// StatusFailed marks a session terminated by an error.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Session is one attempted dialogue pursuing a single Goal. It is mutated only
// by the orchestrator that owns it; the mutex guards readers that observe it
// while it is running (progress reporting, cancellation).
//
// Contract:
//   - Turns alternate speakers starting with the persona
//   - len(Turns) never exceeds MaxTurns
//   - once Status leaves running it never changes again
type Session struct {
	ID        string           `json:"id"`
	GoalID    string           `json:"goal_id"`
	Goal      Goal             `json:"-"`
	Status    Status           `json:"status"`
	MaxTurns  int              `json:"max_turns"`
	Turns     []Turn           `json:"turns"`
	CreatedAt time.Time        `json:"created_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	EndedBy   Speaker          `json:"ended_by,omitempty"`
	Error     *ErrorDescriptor `json:"error,omitempty"`

	// PersonaContext is private to the persona side and never sent to the agent.
	PersonaContext string `json:"-"`

	cause error
	mu    sync.RWMutex
}

// NewSession creates a running session for goal with the given turn limit.
func NewSession(goal Goal, maxTurns int) *Session {
	return &Session{
		ID:             NewID(),
		GoalID:         goal.ID,
		Goal:           goal,
		Status:         StatusRunning,
		MaxTurns:       maxTurns,
		Turns:          []Turn{},
		CreatedAt:      time.Now().UTC(),
		PersonaContext: goal.Text,
	}
}

// NextSpeaker returns who must produce the next turn.
func (s *Session) NextSpeaker() Speaker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nextSpeaker(len(s.Turns))
}

func nextSpeaker(n int) Speaker {
	if n%2 == 0 {
		return SpeakerPersona
	}
	return SpeakerAgent
}

// AppendTurn records an utterance. It enforces the alternation and turn limit
// invariants and never corrects a violation silently.
func (s *Session) AppendTurn(speaker Speaker, text string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.Turns)
	if s.Status != StatusRunning {
		return Turn{}, &TurnSequenceError{Index: n, Got: speaker, Reason: "session is " + string(s.Status)}
	}
	if n >= s.MaxTurns {
		return Turn{}, &TurnSequenceError{Index: n, Got: speaker, Reason: "turn limit reached"}
	}
	if want := nextSpeaker(n); speaker != want {
		return Turn{}, &TurnSequenceError{Index: n, Expected: want, Got: speaker, Reason: "wrong speaker"}
	}
	t := Turn{Index: n, Speaker: speaker, Text: text, Timestamp: time.Now().UTC()}
	s.Turns = append(s.Turns, t)
	return t, nil
}

// Complete terminates the session successfully. endedBy is empty when the
// turn limit was reached.
func (s *Session) Complete(endedBy Speaker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusRunning {
		return &TurnSequenceError{Index: len(s.Turns), Reason: "complete on " + string(s.Status) + " session"}
	}
	now := time.Now().UTC()
	s.Status = StatusCompleted
	s.EndedAt = &now
	s.EndedBy = endedBy
	return nil
}

// Fail terminates the session with cause. Calling Fail on a terminal session
// is a no-op so the first recorded cause wins.
func (s *Session) Fail(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusRunning {
		return
	}
	now := time.Now().UTC()
	s.Status = StatusFailed
	s.EndedAt = &now
	s.cause = cause
	s.Error = Describe(cause)
}

// Cause returns the error that failed the session, if any.
func (s *Session) Cause() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cause
}

// CurrentStatus returns the status under the read lock.
func (s *Session) CurrentStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Transcript returns a copy of the turns recorded so far.
func (s *Session) Transcript() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.Turns))
	copy(turns, s.Turns)
	return turns
}

// Clone returns a deep copy of the session safe for independent use.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Session{
		ID:             s.ID,
		GoalID:         s.GoalID,
		Goal:           s.Goal,
		Status:         s.Status,
		MaxTurns:       s.MaxTurns,
		Turns:          make([]Turn, len(s.Turns)),
		CreatedAt:      s.CreatedAt,
		EndedBy:        s.EndedBy,
		PersonaContext: s.PersonaContext,
		cause:          s.cause,
	}
	copy(c.Turns, s.Turns)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	return c
}
