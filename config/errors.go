package config

import (
	"errors"
	"fmt"

	"github.com/hupe1980/personasim/core"
)

var (
	// ErrMissingKey reports an absent or empty required key.
	ErrMissingKey = errors.New("missing required key")
	// ErrUnknownHub reports an llm.hub no provider is registered for.
	ErrUnknownHub = errors.New("unknown provider hub")
	// ErrNotFound reports an unknown agent configuration id.
	ErrNotFound = errors.New("agent config not found")
)

// ConfigError reports a missing, empty or invalid configuration key.
type ConfigError struct {
	// Path is the source document, empty for in-memory configuration.
	Path string
	// Key is the dotted key path, e.g. "templates.system_prompt".
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	msg := "config"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Key != "" {
		msg += ": " + e.Key
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Kind implements core.Kinded.
func (e *ConfigError) Kind() string { return core.KindConfig }

func missing(path, key string) *ConfigError {
	return &ConfigError{Path: path, Key: key, Err: ErrMissingKey}
}

func invalid(path, key string, err error) *ConfigError {
	return &ConfigError{Path: path, Key: key, Err: fmt.Errorf("invalid value: %w", err)}
}

var errNegative = errors.New("must not be negative")
