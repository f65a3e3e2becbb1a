package testutil

import (
	"github.com/hupe1980/personasim/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder(goal).MaxTurns(4).Texts("hi", "hello").Completed().Build()
//
// Texts alternate speakers starting with the persona.
type SessionBuilder struct {
	goal     core.Goal
	maxTurns int
	texts    []string
	endedBy  core.Speaker
	complete bool
	cause    error
}

// NewSessionBuilder creates a builder for a session pursuing goal.
func NewSessionBuilder(goal core.Goal) *SessionBuilder {
	return &SessionBuilder{goal: goal, maxTurns: 10}
}

// MaxTurns sets the turn limit (chainable).
func (b *SessionBuilder) MaxTurns(n int) *SessionBuilder { b.maxTurns = n; return b }

// Texts appends turn texts (chainable).
func (b *SessionBuilder) Texts(texts ...string) *SessionBuilder {
	b.texts = append(b.texts, texts...)
	return b
}

// Completed marks the session completed (chainable).
func (b *SessionBuilder) Completed() *SessionBuilder { b.complete = true; return b }

// EndedBy marks the session completed by a stop signal from s (chainable).
func (b *SessionBuilder) EndedBy(s core.Speaker) *SessionBuilder {
	b.complete = true
	b.endedBy = s
	return b
}

// Failed marks the session failed with cause (chainable).
func (b *SessionBuilder) Failed(cause error) *SessionBuilder { b.cause = cause; return b }

// Build returns the session. It panics when the texts violate the session
// invariants, which is a bug in the test itself.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.goal, b.maxTurns)
	for _, text := range b.texts {
		if _, err := s.AppendTurn(s.NextSpeaker(), text); err != nil {
			panic(err)
		}
	}
	switch {
	case b.cause != nil:
		s.Fail(b.cause)
	case b.complete:
		if err := s.Complete(b.endedBy); err != nil {
			panic(err)
		}
	}
	return s
}
