package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/personasim/core"
)

// Role identifies the author of a Message from the callee's point of view.
type Role string

const (
	// RoleUser is the counterpart talking to the model.
	RoleUser Role = "user"
	// RoleAssistant is the model itself.
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation history sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params carries per-call generation parameters. Nil pointers mean "use the
// model's configured default".
type Params struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// ParamsFrom converts configured parameters into per-call parameters.
func ParamsFrom(p core.Params) Params {
	temperature := p.Temperature
	out := Params{Temperature: &temperature, TopP: p.TopP}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		out.MaxTokens = &maxTokens
	}
	return out
}

// Request captures the normalized model input: a system prompt plus an
// ordered history that must start with a user message.
type Request struct {
	SystemPrompt string    `json:"system_prompt"`
	Messages     []Message `json:"messages"`
	Params       Params    `json:"params,omitempty"`
}

// LastUserMessage returns the content of the most recent user message.
func (r Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed generation.
type Response struct {
	ID           string      `json:"id,omitempty"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "together", "anthropic", "mock"
}

// Model is the capability every provider hub implements. Implementations must
// be safe for concurrent use and must report failures as *ProviderError.
type Model interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in‑memory Model useful for tests, examples and
// offline runs.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for the last user
// message of a request.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, NormalizeError(m.info.Provider, err)
	}
	if len(req.Messages) == 0 {
		return nil, &ProviderError{Type: KindInvalidRequest, Provider: m.info.Provider, Err: fmt.Errorf("no messages provided")}
	}
	input := req.LastUserMessage()
	m.mu.RLock()
	full := m.responses[input]
	m.mu.RUnlock()
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return &Response{Text: full, FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
