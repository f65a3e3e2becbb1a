package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/internal/testutil"
	"github.com/hupe1980/personasim/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastRetry(maxAttempts int) func(o *Options) {
	return func(o *Options) {
		o.MaxAttempts = maxAttempts
		o.InitialBackoff = time.Millisecond
		o.MaxBackoff = 2 * time.Millisecond
	}
}

func timeoutErr() error {
	return &model.ProviderError{Type: model.KindTimeout, Provider: "scripted", Err: context.DeadlineExceeded}
}

func request() model.Request {
	return model.Request{SystemPrompt: "sys", Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}}}
}

func TestGateway_RetryExhaustedOnTimeout(t *testing.T) {
	provider := testutil.NewScriptedModel("m").Always(testutil.Fail(timeoutErr()))
	gw := Wrap(provider, fastRetry(3))

	resp, err := gw.Complete(context.Background(), request())
	require.Error(t, err)
	assert.Nil(t, resp)

	assert.Equal(t, 3, provider.Calls())

	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.KindTimeout, pe.Kind())
	assert.Equal(t, 3, pe.Attempts)
	assert.ErrorIs(t, err, model.ErrTimeout)

	d := core.Describe(err)
	assert.Equal(t, core.KindTimeout, d.Kind)
	assert.Equal(t, 3, d.Attempts)
}

func TestGateway_ExhaustedTimeoutIsProviderFailure(t *testing.T) {
	logger := testutil.NewRecordingLogger()
	provider := testutil.NewScriptedModel("m").Always(testutil.Step{Block: true})
	gw := Wrap(provider, fastRetry(2), func(o *Options) {
		o.CallTimeout = 5 * time.Millisecond
		o.Logger = logger
	})

	_, err := gw.Complete(context.Background(), request())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "abandoned")

	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.KindTimeout, pe.Type)
	assert.Equal(t, 2, pe.Attempts)
	assert.Contains(t, logger.Messages("error"), "provider call failed")
	assert.NotContains(t, logger.Messages("warn"), "provider call abandoned")
}

func TestGateway_HonorsRetryAfter(t *testing.T) {
	provider := testutil.NewScriptedModel("m",
		testutil.Fail(&model.ProviderError{Type: model.KindRateLimited, Provider: "scripted", RetryAfter: 60 * time.Millisecond}),
		testutil.Reply("ok"),
	)
	gw := Wrap(provider, fastRetry(2))

	start := time.Now()
	resp, err := gw.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, provider.Calls())
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestGateway_RetryAfterOnLastAttemptKeepsProviderError(t *testing.T) {
	provider := testutil.NewScriptedModel("m").Always(testutil.Fail(
		&model.ProviderError{Type: model.KindRateLimited, Provider: "scripted", RetryAfter: 5 * time.Millisecond}))
	gw := Wrap(provider, fastRetry(2))

	_, err := gw.Complete(context.Background(), request())
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.KindRateLimited, pe.Type)
	assert.Equal(t, 2, pe.Attempts)
	assert.ErrorIs(t, err, model.ErrRateLimited)
	assert.Equal(t, 2, provider.Calls())
}

func TestGateway_RetryAfterWaitRespectsContext(t *testing.T) {
	provider := testutil.NewScriptedModel("m").Always(testutil.Fail(
		&model.ProviderError{Type: model.KindRateLimited, Provider: "scripted", RetryAfter: time.Hour}))
	gw := Wrap(provider, fastRetry(3))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.Complete(ctx, request())
	require.Error(t, err)
	assert.Equal(t, core.KindTimeout, core.Describe(err).Kind)
	assert.Equal(t, 1, provider.Calls())
}

func TestGateway_SucceedsAfterTransientFailures(t *testing.T) {
	provider := testutil.NewScriptedModel("m",
		testutil.Fail(&model.ProviderError{Type: model.KindRateLimited, Provider: "scripted"}),
		testutil.Fail(&model.ProviderError{Type: model.KindUnavailable, Provider: "scripted", StatusCode: 503}),
		testutil.Reply("hello"),
	)
	gw := Wrap(provider, fastRetry(3))

	resp, err := gw.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, 3, provider.Calls())
}

func TestGateway_NonTransientNotRetried(t *testing.T) {
	kinds := []string{model.KindAuthFailure, model.KindInvalidRequest, model.KindMalformedResponse}
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			provider := testutil.NewScriptedModel("m").Always(testutil.Fail(&model.ProviderError{Type: kind, Provider: "scripted"}))
			gw := Wrap(provider, fastRetry(5))

			_, err := gw.Complete(context.Background(), request())

			var pe *model.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, kind, pe.Type)
			assert.Equal(t, 1, pe.Attempts)
			assert.Equal(t, 1, provider.Calls())
		})
	}
}

func TestGateway_UnclassifiedErrorIsUnavailable(t *testing.T) {
	provider := testutil.NewScriptedModel("m").Always(testutil.Fail(errors.New("connection reset")))
	gw := Wrap(provider, fastRetry(2))

	_, err := gw.Complete(context.Background(), request())
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.KindUnavailable, pe.Type)
	assert.Equal(t, 2, provider.Calls())
}

func TestGateway_EmptyResponseIsMalformed(t *testing.T) {
	provider := testutil.NewScriptedModel("m", testutil.Reply(""))
	gw := Wrap(provider, fastRetry(3))

	_, err := gw.Complete(context.Background(), request())
	assert.ErrorIs(t, err, model.ErrMalformedResponse)
	assert.Equal(t, 1, provider.Calls())
}

func TestGateway_CallTimeoutRetried(t *testing.T) {
	provider := testutil.NewScriptedModel("m",
		testutil.Step{Block: true},
		testutil.Reply("late but fine"),
	)
	gw := Wrap(provider, fastRetry(2), func(o *Options) { o.CallTimeout = 20 * time.Millisecond })

	resp, err := gw.Complete(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "late but fine", resp.Text)
	assert.Equal(t, 2, provider.Calls())
}

func TestGateway_ContextCanceledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := testutil.NewScriptedModel("m").Always(testutil.Step{Func: func(context.Context, model.Request) (*model.Response, error) {
		cancel()
		return nil, timeoutErr()
	}})
	gw := Wrap(provider, func(o *Options) {
		o.MaxAttempts = 5
		o.InitialBackoff = time.Hour
	})

	_, err := gw.Complete(ctx, request())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, provider.Calls())

	d := core.Describe(err)
	assert.Equal(t, core.KindCanceled, d.Kind)
	assert.Equal(t, 1, d.Attempts)
}

func TestGateway_DeadlineDuringCallIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	provider := testutil.NewScriptedModel("m").Always(testutil.Step{Block: true})
	gw := Wrap(provider, fastRetry(3))

	_, err := gw.Complete(ctx, request())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, core.KindTimeout, core.Describe(err).Kind)
}

func TestGateway_RateLimiterShared(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(10*time.Millisecond), 1)
	provider := testutil.NewScriptedModel("m").Always(testutil.Reply("ok"))
	a := Wrap(provider, func(o *Options) { o.Limiter = limiter })
	b := Wrap(provider, func(o *Options) { o.Limiter = limiter })

	start := time.Now()
	var wg sync.WaitGroup
	for _, gw := range []*Gateway{a, b, a, b} {
		wg.Add(1)
		go func(gw *Gateway) {
			defer wg.Done()
			_, err := gw.Complete(context.Background(), request())
			assert.NoError(t, err)
		}(gw)
	}
	wg.Wait()

	assert.Equal(t, 4, provider.Calls())
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestGateway_RateLimiterRespectsContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	provider := testutil.NewScriptedModel("m").Always(testutil.Reply("ok"))
	gw := Wrap(provider, func(o *Options) { o.Limiter = limiter })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gw.Complete(ctx, request())
	require.Error(t, err)
	assert.Equal(t, core.KindTimeout, core.Describe(err).Kind)
	assert.Equal(t, 0, provider.Calls())
}

func TestGateway_Metrics(t *testing.T) {
	collector := metrics.NewCollector("gw")
	provider := testutil.NewScriptedModel("m",
		testutil.Fail(timeoutErr()),
		testutil.Step{Func: func(context.Context, model.Request) (*model.Response, error) {
			return &model.Response{Text: "ok", Usage: &model.TokenUsage{PromptTokens: 7, CompletionTokens: 3}}, nil
		}},
	)
	gw := Wrap(provider, fastRetry(2), func(o *Options) { o.Metrics = collector })

	_, err := gw.Complete(context.Background(), request())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `gw_llm_requests_total{model="m",provider="scripted",status="success"} 1`)
	assert.Contains(t, body, `gw_llm_requests_total{model="m",provider="scripted",status="timeout"} 1`)
	assert.Contains(t, body, `gw_llm_retries_total{kind="timeout",model="m",provider="scripted"} 1`)
	assert.Contains(t, body, `gw_llm_tokens_used_total{model="m",provider="scripted",type="prompt"} 7`)
}

func TestWithRetryPolicy(t *testing.T) {
	opts := defaultOptions()
	WithRetryPolicy(config.RetryPolicy{MaxAttempts: 4, BackoffSeconds: 0.25, TimeoutSeconds: 30})(&opts)
	assert.Equal(t, 4, opts.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, opts.InitialBackoff)
	assert.Equal(t, 30*time.Second, opts.CallTimeout)

	opts = defaultOptions()
	WithRetryPolicy(config.RetryPolicy{})(&opts)
	assert.Equal(t, defaultOptions().MaxAttempts, opts.MaxAttempts)
}

func TestWrap_ClampsMaxAttempts(t *testing.T) {
	provider := testutil.NewScriptedModel("m").Always(testutil.Fail(timeoutErr()))
	gw := Wrap(provider, fastRetry(0))

	_, err := gw.Complete(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, 1, provider.Calls())
}
