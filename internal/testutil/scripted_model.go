package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/personasim/model"
)

// Step is one scripted model reaction.
type Step struct {
	Text string
	Err  error
	// Delay postpones the reaction; the context still wins.
	Delay time.Duration
	// Block waits for the context to end and returns its error.
	Block bool
	// Func computes the reaction and overrides the other fields.
	Func func(ctx context.Context, req model.Request) (*model.Response, error)
}

// ErrScriptExhausted is returned once every step has been consumed and no
// fallback is configured.
var ErrScriptExhausted = errors.New("script exhausted")

// ScriptedModel is a model.Model replaying steps in order. It records every
// request and is safe for concurrent use.
type ScriptedModel struct {
	info model.Info

	mu       sync.Mutex
	steps    []Step
	next     int
	fallback *Step
	requests []model.Request
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel creates a model replaying steps.
func NewScriptedModel(name string, steps ...Step) *ScriptedModel {
	return &ScriptedModel{info: model.Info{Name: name, Provider: "scripted"}, steps: steps}
}

// Reply creates a text step.
func Reply(text string) Step { return Step{Text: text} }

// Fail creates an error step.
func Fail(err error) Step { return Step{Err: err} }

// Then appends steps (chainable).
func (m *ScriptedModel) Then(steps ...Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
	return m
}

// Always sets the step used once the script is exhausted (chainable).
func (m *ScriptedModel) Always(step Step) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &step
	return m
}

// Calls returns the number of Complete invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Complete implements model.Model.
func (m *ScriptedModel) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var step Step
	switch {
	case m.next < len(m.steps):
		step = m.steps[m.next]
		m.next++
	case m.fallback != nil:
		step = *m.fallback
	default:
		m.mu.Unlock()
		return nil, &model.ProviderError{Type: model.KindInvalidRequest, Provider: m.info.Provider, Err: ErrScriptExhausted}
	}
	m.mu.Unlock()

	if step.Func != nil {
		return step.Func(ctx, req)
	}
	if step.Block {
		<-ctx.Done()
		return nil, model.NormalizeError(m.info.Provider, ctx.Err())
	}
	if step.Delay > 0 {
		t := time.NewTimer(step.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, model.NormalizeError(m.info.Provider, ctx.Err())
		case <-t.C:
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &model.Response{Text: step.Text, FinishReason: "stop"}, nil
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info { return m.info }
