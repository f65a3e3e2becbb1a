// Package together provides a model.Model for the Together AI hub. Together
// exposes an OpenAI compatible Chat Completions endpoint, so the adapter is a
// configured openai.Model reporting "together" as its provider.
package together

import (
	"os"

	"github.com/hupe1980/personasim/model/openai"
)

const (
	// DefaultBaseURL is the Together OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.together.xyz/v1"
	// APIKeyEnv is the environment variable read when no key is configured.
	APIKeyEnv = "TOGETHER_API_KEY"
	// DefaultModel is used when the configuration names none.
	DefaultModel = "meta-llama/Llama-3.3-70B-Instruct-Turbo"
)

// NewModel creates a Together model. Options are applied after the Together
// defaults, so callers may still override the endpoint (for tests or proxies).
func NewModel(optFns ...func(o *openai.Options)) *openai.Model {
	defaults := func(o *openai.Options) {
		o.Provider = "together"
		o.BaseURL = DefaultBaseURL
		o.Model = DefaultModel
		o.APIKey = os.Getenv(APIKeyEnv)
	}
	return openai.NewModel(append([]func(o *openai.Options){defaults}, optFns...)...)
}
