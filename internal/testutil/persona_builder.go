package testutil

import (
	"github.com/hupe1980/personasim/core"
)

// PersonaBuilder provides a fluent helper for constructing personas. The
// defaults carry every demographic attribute the built-in templates use.
type PersonaBuilder struct {
	p core.Persona
}

// NewPersonaBuilder creates a builder for persona id.
func NewPersonaBuilder(id string) *PersonaBuilder {
	return &PersonaBuilder{p: core.Persona{
		ID:               id,
		ParticipantID:    "participant-" + id,
		ResponseLanguage: "English",
		HighLevelAIView:  "cautiously optimistic",
		Demographics: map[string]any{
			"self identified country": "Kenya",
			"age bracket":             "26-35",
			"gender":                  "female",
			"religion":                "Christianity",
			"community type":          "urban",
			"preferred language":      "Swahili",
		},
		SurveyResponses: map[string]string{
			"How often do you use AI?": "Weekly",
		},
	}}
}

// Language sets the response language (chainable).
func (b *PersonaBuilder) Language(l string) *PersonaBuilder { b.p.ResponseLanguage = l; return b }

// Demographic sets one demographic attribute (chainable).
func (b *PersonaBuilder) Demographic(key string, v any) *PersonaBuilder {
	b.p.Demographics[key] = v
	return b
}

// WithoutDemographic removes an attribute (chainable).
func (b *PersonaBuilder) WithoutDemographic(key string) *PersonaBuilder {
	delete(b.p.Demographics, key)
	return b
}

// Survey sets one survey answer (chainable).
func (b *PersonaBuilder) Survey(q, a string) *PersonaBuilder {
	b.p.SurveyResponses[q] = a
	return b
}

// Build returns a copy of the persona.
func (b *PersonaBuilder) Build() core.Persona { return b.p.Clone() }

// AgentConfig returns an agent configuration on the mock hub whose system
// prompt references persona variables.
func AgentConfig(id string) *core.AgentConfig {
	return &core.AgentConfig{
		ID:           id,
		Name:         "Helper " + id,
		Description:  "A general purpose assistant.",
		LLM:          core.LLMConfig{Hub: "mock", Model: "mock-agent", Params: core.Params{Temperature: 0.2}},
		SystemPrompt: "You are ${agent_name}. The user writes in ${response_language}. This is turn ${turn_index}.",
	}
}
