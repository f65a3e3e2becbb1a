package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/model"
	"golang.org/x/time/rate"
)

// Options configures a Gateway.
type Options struct {
	// MaxAttempts bounds the total number of calls per request (>= 1).
	MaxAttempts int
	// InitialBackoff is the first retry delay before jitter.
	InitialBackoff time.Duration
	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// Jitter is the randomization factor in [0, 1].
	Jitter float64
	// CallTimeout bounds each attempt; zero leaves it to the caller's context.
	CallTimeout time.Duration
	// Limiter, when set, is waited on before every attempt. Share one
	// limiter between gateways to bound the aggregate request rate.
	Limiter *rate.Limiter
	Metrics *metrics.Collector
	Logger  logging.Logger
}

func defaultOptions() Options {
	return Options{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Jitter:         0.5,
		Logger:         logging.NoOpLogger{},
	}
}

// WithRetryPolicy applies a retries block from a configuration document.
// Zero fields keep the current values.
func WithRetryPolicy(p config.RetryPolicy) func(o *Options) {
	return func(o *Options) {
		if p.MaxAttempts > 0 {
			o.MaxAttempts = p.MaxAttempts
		}
		if d := p.Backoff(); d > 0 {
			o.InitialBackoff = d
		}
		if d := p.Timeout(); d > 0 {
			o.CallTimeout = d
		}
	}
}

// Gateway wraps a provider with retry, rate limiting and instrumentation. It
// is safe for concurrent use.
type Gateway struct {
	provider model.Model
	opts     Options
	logger   logging.Logger
}

var _ model.Model = (*Gateway)(nil)

// Wrap decorates provider.
func Wrap(provider model.Model, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	info := provider.Info()
	return &Gateway{
		provider: provider,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger).With("provider", info.Provider, "model", info.Name),
	}
}

// Info reports the wrapped provider.
func (g *Gateway) Info() model.Info { return g.provider.Info() }

// Provider returns the wrapped model.
func (g *Gateway) Provider() model.Model { return g.provider }

// Complete sends req, retrying transient failures. Cancellation of ctx stops
// immediately, also while waiting between attempts, and is returned as the
// context's error.
func (g *Gateway) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	info := g.provider.Info()
	attempts := 0
	var lastErr error

	operation := func() (*model.Response, error) {
		attempts++
		if g.opts.Limiter != nil {
			if err := g.opts.Limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, backoff.Permanent(fmt.Errorf("rate limiter: %w", ctx.Err()))
				}
				// The wait would outlast the caller's deadline.
				return nil, backoff.Permanent(&model.ProviderError{Type: model.KindTimeout, Provider: info.Provider, Err: err})
			}
		}

		resp, err := g.call(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			// The caller gave up; the provider error is only a symptom.
			g.logger.Debug("provider call interrupted", "error", err.Error())
			return nil, backoff.Permanent(ctx.Err())
		}
		if !model.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		lastErr = err
		// A Retry-After hint replaces the computed delay, except after the
		// final attempt where the provider error itself must surface.
		var pe *model.ProviderError
		if errors.As(err, &pe) && pe.RetryAfter > 0 && attempts < g.opts.MaxAttempts {
			return nil, &backoff.RetryAfterError{Duration: pe.RetryAfter}
		}
		return nil, err
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(g.newBackOff()),
		backoff.WithMaxTries(uint(g.opts.MaxAttempts)),
		backoff.WithNotify(func(_ error, next time.Duration) {
			err := lastErr
			kind := kindOf(err)
			g.opts.Metrics.RecordLLMRetry(info.Provider, info.Name, kind)
			g.logger.Warn("retrying provider call",
				"attempt", attempts,
				"max_attempts", g.opts.MaxAttempts,
				"kind", kind,
				"backoff", next.String(),
				"error", err.Error(),
			)
		}),
	)
	if err != nil {
		return nil, g.terminal(ctx, err, attempts)
	}
	return resp, nil
}

// call performs one attempt and records it.
func (g *Gateway) call(ctx context.Context, req model.Request) (*model.Response, error) {
	info := g.provider.Info()
	if g.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		err = model.NormalizeError(info.Provider, err)
		g.opts.Metrics.RecordLLMRequest(info.Provider, info.Name, kindOf(err), elapsed, 0, 0)
		return nil, err
	}
	if resp == nil || resp.Text == "" {
		err = model.Malformed(info.Provider, "empty response")
		g.opts.Metrics.RecordLLMRequest(info.Provider, info.Name, model.KindMalformedResponse, elapsed, 0, 0)
		return nil, err
	}

	var prompt, completion int
	if resp.Usage != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	g.opts.Metrics.RecordLLMRequest(info.Provider, info.Name, "success", elapsed, prompt, completion)
	g.logger.Debug("provider call succeeded", "duration", elapsed.String(), "finish_reason", resp.FinishReason)
	return resp, nil
}

// terminal stamps the attempt count on the final provider error. Only the
// caller's context decides whether the request was abandoned; provider
// timeouts wrap context.DeadlineExceeded too.
func (g *Gateway) terminal(ctx context.Context, err error, attempts int) error {
	var pe *model.ProviderError
	if ctx.Err() == nil && errors.As(err, &pe) {
		out := *pe
		out.Attempts = attempts
		g.logger.Error("provider call failed", "kind", out.Type, "attempts", attempts, "error", err.Error())
		return &out
	}
	g.logger.Warn("provider call abandoned", "attempts", attempts, "error", err.Error())
	return &abandonedError{attempts: attempts, err: err}
}

func (g *Gateway) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.InitialBackoff
	b.MaxInterval = g.opts.MaxBackoff
	b.Multiplier = g.opts.Multiplier
	b.RandomizationFactor = g.opts.Jitter
	return b
}

// abandonedError is returned when the caller's context ended the request.
type abandonedError struct {
	attempts int
	err      error
}

func (e *abandonedError) Error() string {
	return fmt.Sprintf("provider call abandoned after %d attempts: %v", e.attempts, e.err)
}

func (e *abandonedError) Unwrap() error { return e.err }

// AttemptCount reports how many calls were made.
func (e *abandonedError) AttemptCount() int { return e.attempts }

// kindOf returns the error kind label used in logs and metrics.
func kindOf(err error) string {
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return "error"
}
