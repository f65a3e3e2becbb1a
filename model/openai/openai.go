// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts the normalized Request/Response structures
// into the SDK's message format and back, and maps SDK failures into the
// model.ProviderError taxonomy. Any OpenAI-compatible endpoint can be reached
// through Options.BaseURL (see package together).
package openai

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hupe1980/personasim/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	TopP                *float64
	APIKey              string
	BaseURL             string
	// Provider is the name reported in Info and errors.
	Provider string
	// RequestTimeout bounds a single HTTP attempt; zero leaves it to the context.
	RequestTimeout time.Duration
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
		Provider:            "openai",
	}
}

// NewModel creates a new OpenAI model using the official client. The SDK's
// own retries are disabled; retry policy belongs to the gateway.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.RequestTimeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(opts.RequestTimeout))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, &model.ProviderError{Type: model.KindInvalidRequest, Provider: m.opts.Provider, Err: errors.New("no messages provided")}
	}

	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(req))
	if err != nil {
		return nil, m.normalize(err)
	}
	if len(resp.Choices) == 0 {
		return nil, model.Malformed(m.opts.Provider, "no choices returned")
	}

	ch0 := resp.Choices[0]
	if ch0.Message.Content == "" {
		return nil, model.Malformed(m.opts.Provider, "empty completion (finish reason %q)", ch0.FinishReason)
	}

	return &model.Response{
		ID:           resp.ID,
		Text:         ch0.Message.Content,
		FinishReason: ch0.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildMessages converts the normalized history into OpenAI chat messages.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters; per-request params
// override the configured defaults.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	temperature := m.opts.Temperature
	if req.Params.Temperature != nil {
		temperature = *req.Params.Temperature
	}
	maxTokens := m.opts.MaxCompletionTokens
	if req.Params.MaxTokens != nil {
		maxTokens = *req.Params.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	topP := m.opts.TopP
	if req.Params.TopP != nil {
		topP = req.Params.TopP
	}
	if topP != nil {
		params.TopP = openai.Float(*topP)
	}
	return params
}

// normalize maps SDK errors into the provider taxonomy.
func (m *Model) normalize(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var retryAfter time.Duration
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return model.StatusError(m.opts.Provider, apiErr.StatusCode, retryAfter, err)
	}
	return model.NormalizeError(m.opts.Provider, err)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Info returns metadata describing this model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: m.opts.Provider,
	}
}
