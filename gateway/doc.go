// Package gateway is the single point through which the simulation talks to
// language models. A Gateway decorates a provider model.Model with
//
//   - bounded retries with exponential backoff and jitter on transient
//     failures (timeout, rate_limited, unavailable)
//   - an optional token bucket rate limit shared by every caller
//   - per-call metrics and structured logs
//
// Non-transient failures (auth_failure, invalid_request, malformed_response)
// are returned after the first call. The terminal error is a
// *model.ProviderError whose Attempts field reports how many calls were made.
//
// New selects the provider from an LLM configuration through the hub
// registry. The hubs openai, together, anthropic and mock are registered by
// default; Register adds more.
package gateway
