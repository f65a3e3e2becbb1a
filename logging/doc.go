// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) plus With for attaching context. Components of the simulation
// engine accept a Logger through their Options and default to NoOpLogger.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	gw, err := gateway.New(cfg, func(o *gateway.Options) { o.Logger = logger })
package logging
