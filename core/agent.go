package core

// Params holds per-call generation parameters. Zero values mean "provider
// default" except Temperature, which is always sent.
type Params struct {
	Temperature float64  `json:"temperature" yaml:"temperature"`
	MaxTokens   int64    `json:"max_tokens,omitempty" yaml:"max_tokens"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p"`
}

// LLMConfig selects a provider hub and model.
type LLMConfig struct {
	// Hub names the provider ("together", "openai", "anthropic", "mock").
	Hub   string `json:"hub" yaml:"hub"`
	Model string `json:"model" yaml:"model"`
	// BaseURL optionally overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`
	// APIKeyEnv optionally names the environment variable holding the key.
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env"`
	Params    Params `json:"params" yaml:"params"`
}

// AgentConfig describes the target conversational agent. It is immutable for
// the duration of a run; the loader in package config produces it.
type AgentConfig struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	LLM         LLMConfig `json:"llm"`
	// SystemPrompt is a template rendered per agent turn.
	SystemPrompt string `json:"system_prompt"`
}
