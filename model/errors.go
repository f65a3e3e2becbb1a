package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hupe1980/personasim/core"
)

// Normalized provider error kinds.
const (
	KindTimeout           = core.KindTimeout
	KindRateLimited       = core.KindRateLimited
	KindMalformedResponse = core.KindMalformedResponse
	KindAuthFailure       = core.KindAuthFailure
	KindInvalidRequest    = core.KindInvalidRequest
	KindUnavailable       = core.KindUnavailable
)

// Sentinels matched by errors.Is against a *ProviderError of the same kind.
var (
	ErrTimeout           = errors.New("provider timeout")
	ErrRateLimited       = errors.New("provider rate limited")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrAuthFailure       = errors.New("provider authentication failure")
	ErrInvalidRequest    = errors.New("invalid provider request")
	ErrUnavailable       = errors.New("provider unavailable")
)

var sentinels = map[string]error{
	KindTimeout:           ErrTimeout,
	KindRateLimited:       ErrRateLimited,
	KindMalformedResponse: ErrMalformedResponse,
	KindAuthFailure:       ErrAuthFailure,
	KindInvalidRequest:    ErrInvalidRequest,
	KindUnavailable:       ErrUnavailable,
}

// ProviderError is the normalized failure of a provider call.
type ProviderError struct {
	// Type is one of the Kind* constants.
	Type       string
	Provider   string
	StatusCode int
	// Attempts is the number of calls made for the logical request; set by the gateway.
	Attempts int
	// RetryAfter is a provider supplied hint (rate limiting), zero if absent.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider error (%s)", e.Provider, e.Type)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches the sentinel of the same kind.
func (e *ProviderError) Is(target error) bool {
	s, ok := sentinels[e.Type]
	return ok && s == target
}

// Kind implements core.Kinded.
func (e *ProviderError) Kind() string { return e.Type }

// AttemptCount reports how many calls were made.
func (e *ProviderError) AttemptCount() int { return e.Attempts }

// Transient reports whether the failure may succeed on retry.
func (e *ProviderError) Transient() bool {
	switch e.Type {
	case KindTimeout, KindRateLimited, KindUnavailable:
		return true
	default:
		return false
	}
}

// IsTransient reports whether err is a transient *ProviderError.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient()
}

// ClassifyStatus maps an HTTP status code to an error kind.
func ClassifyStatus(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthFailure
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindUnavailable
	default:
		return KindInvalidRequest
	}
}

// NormalizeError converts transport and context failures into a
// *ProviderError. Cancellation is returned unchanged because it is not a
// provider failure. Errors that are already normalized pass through.
func NormalizeError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Type: KindTimeout, Provider: provider, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &ProviderError{Type: KindTimeout, Provider: provider, Err: err}
	}
	return &ProviderError{Type: KindUnavailable, Provider: provider, Err: err}
}

// StatusError builds a *ProviderError from an HTTP status returned by an SDK.
func StatusError(provider string, status int, retryAfter time.Duration, err error) *ProviderError {
	return &ProviderError{
		Type:       ClassifyStatus(status),
		Provider:   provider,
		StatusCode: status,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// Malformed builds a malformed-response error.
func Malformed(provider, format string, args ...any) *ProviderError {
	return &ProviderError{Type: KindMalformedResponse, Provider: provider, Err: fmt.Errorf(format, args...)}
}
