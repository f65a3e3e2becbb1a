// Package model defines the provider‑agnostic abstraction used to talk to
// language models ("hubs") during a simulation.
//
// Core goals:
//   - One small capability (Complete) implemented once per provider
//   - A normalized error taxonomy (ProviderError) so retry policy and failure
//     reporting never branch on vendor types
//   - Request/response shapes that are minimal and transport independent
//   - Lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/together, model/anthropic) implement Model so
// higher layers (goal generation, conversation orchestration) remain decoupled
// from vendor SDKs. Retry, rate limiting and metrics live in package gateway.
package model
