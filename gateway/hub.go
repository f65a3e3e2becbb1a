package gateway

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/model"
	modelanthropic "github.com/hupe1980/personasim/model/anthropic"
	modelopenai "github.com/hupe1980/personasim/model/openai"
	"github.com/hupe1980/personasim/model/together"
)

// Factory builds the provider for a hub from an LLM configuration.
type Factory func(cfg core.LLMConfig) (model.Model, error)

var (
	hubsMu sync.RWMutex
	hubs   = map[string]Factory{
		"openai":    newOpenAI,
		"together":  newTogether,
		"anthropic": newAnthropic,
		"mock":      newMock,
	}
)

// Register makes a provider available under hub, replacing any previous
// registration. Hub names are case-insensitive.
func Register(hub string, f Factory) {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	hubs[strings.ToLower(hub)] = f
}

// Hubs returns the registered hub names in sorted order.
func Hubs() []string {
	hubsMu.RLock()
	defer hubsMu.RUnlock()
	names := make([]string, 0, len(hubs))
	for h := range hubs {
		names = append(names, h)
	}
	sort.Strings(names)
	return names
}

// NewProvider builds the bare provider for cfg.Hub. An unknown hub is a
// *config.ConfigError.
func NewProvider(cfg core.LLMConfig) (model.Model, error) {
	hubsMu.RLock()
	f, ok := hubs[strings.ToLower(cfg.Hub)]
	hubsMu.RUnlock()
	if !ok {
		return nil, &config.ConfigError{
			Key: "llm.hub",
			Err: fmt.Errorf("%w %q (registered: %s)", config.ErrUnknownHub, cfg.Hub, strings.Join(Hubs(), ", ")),
		}
	}
	return f(cfg)
}

// New builds the provider for cfg and wraps it in a Gateway.
func New(cfg core.LLMConfig, optFns ...func(o *Options)) (*Gateway, error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return Wrap(p, optFns...), nil
}

func apiKey(cfg core.LLMConfig, fallbackEnv string) string {
	if cfg.APIKeyEnv != "" {
		return os.Getenv(cfg.APIKeyEnv)
	}
	return os.Getenv(fallbackEnv)
}

func openAIOptions(cfg core.LLMConfig) func(o *modelopenai.Options) {
	return func(o *modelopenai.Options) {
		if cfg.Model != "" {
			o.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			o.BaseURL = cfg.BaseURL
		}
		o.Temperature = cfg.Params.Temperature
		if cfg.Params.MaxTokens > 0 {
			o.MaxCompletionTokens = cfg.Params.MaxTokens
		}
		o.TopP = cfg.Params.TopP
	}
}

func newOpenAI(cfg core.LLMConfig) (model.Model, error) {
	return modelopenai.NewModel(openAIOptions(cfg), func(o *modelopenai.Options) {
		o.APIKey = apiKey(cfg, "OPENAI_API_KEY")
	}), nil
}

func newTogether(cfg core.LLMConfig) (model.Model, error) {
	return together.NewModel(openAIOptions(cfg), func(o *modelopenai.Options) {
		o.APIKey = apiKey(cfg, together.APIKeyEnv)
	}), nil
}

func newAnthropic(cfg core.LLMConfig) (model.Model, error) {
	return modelanthropic.NewModel(func(o *modelanthropic.Options) {
		if cfg.Model != "" {
			o.Model = anthropic.Model(cfg.Model)
		}
		o.BaseURL = cfg.BaseURL
		o.APIKey = apiKey(cfg, "ANTHROPIC_API_KEY")
		o.Temperature = cfg.Params.Temperature
		if cfg.Params.MaxTokens > 0 {
			o.MaxTokens = cfg.Params.MaxTokens
		}
		o.TopP = cfg.Params.TopP
	}), nil
}

func newMock(cfg core.LLMConfig) (model.Model, error) {
	name := cfg.Model
	if name == "" {
		name = "mock"
	}
	return model.NewMockModel(name), nil
}
