package core

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds reported in ErrorDescriptor.Kind.
const (
	KindTimeout           = "timeout"
	KindRateLimited       = "rate_limited"
	KindMalformedResponse = "malformed_response"
	KindAuthFailure       = "auth_failure"
	KindInvalidRequest    = "invalid_request"
	KindUnavailable       = "unavailable"
	KindConfig            = "config"
	KindMissingVariable   = "missing_variable"
	KindTemplateSyntax    = "template_syntax"
	KindGoalValidation    = "goal_validation"
	KindGoalGeneration    = "goal_generation"
	KindTurnSequence      = "turn_sequence"
	KindNotFound          = "not_found"
	KindCanceled          = "canceled"
	KindInternal          = "internal"
)

// Kinded is implemented by every error of the simulation taxonomy.
type Kinded interface {
	error
	Kind() string
}

// ErrorDescriptor is the machine-readable form of a failure carried by failed
// sessions and batches instead of raising to the caller.
type ErrorDescriptor struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Attempts    int    `json:"attempts,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

func (d *ErrorDescriptor) Error() string { return d.Kind + ": " + d.Message }

// attemptsCarrier and rawResponseCarrier let packages attach details without
// core depending on them.
type attemptsCarrier interface{ AttemptCount() int }

type rawResponseCarrier interface{ Raw() string }

// Describe derives a descriptor from err. The outermost taxonomy error in the
// chain decides the kind, except that context expiry always reports
// timeout and cancellation reports canceled. Returns nil for a nil error.
func Describe(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	d := &ErrorDescriptor{Kind: KindInternal, Message: err.Error()}

	var k Kinded
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		d.Kind = KindTimeout
	case errors.Is(err, context.Canceled):
		d.Kind = KindCanceled
	case errors.As(err, &k):
		d.Kind = k.Kind()
	}

	var ac attemptsCarrier
	if errors.As(err, &ac) {
		d.Attempts = ac.AttemptCount()
	}
	var rc rawResponseCarrier
	if errors.As(err, &rc) {
		d.RawResponse = rc.Raw()
	}
	return d
}

// TurnSequenceError reports a violated transcript invariant (wrong speaker
// order, turn limit exceeded, append after termination). It is a defect, never
// corrected silently.
type TurnSequenceError struct {
	Index    int
	Expected Speaker
	Got      Speaker
	Reason   string
}

func (e *TurnSequenceError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("turn sequence violation at turn %d: %s (expected %s, got %s)", e.Index, e.Reason, e.Expected, e.Got)
	}
	return fmt.Sprintf("turn sequence violation at turn %d: %s", e.Index, e.Reason)
}

// Kind implements Kinded.
func (e *TurnSequenceError) Kind() string { return KindTurnSequence }
