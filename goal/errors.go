package goal

import (
	"errors"
	"fmt"

	"github.com/hupe1980/personasim/core"
)

// Validation failure causes, matched with errors.Is.
var (
	ErrUnparseable  = errors.New("response is not a goal list")
	ErrWrongCount   = errors.New("wrong number of goals")
	ErrEmptyGoal    = errors.New("empty goal text")
	ErrDuplicate    = errors.New("duplicate goal text")
	ErrUnknownFaith = errors.New("unknown faith tag")
)

// ErrInvalidRequest reports bad Generate arguments.
var ErrInvalidRequest = errors.New("invalid goal request")

// ValidationError reports a goal set that violates the output contract.
type ValidationError struct {
	// Index is the offending goal, -1 when the set as a whole is invalid.
	Index  int
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid goal %d: %v: %s", e.Index, e.Err, e.Detail)
	}
	return fmt.Sprintf("invalid goal set: %v: %s", e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Kind implements core.Kinded.
func (e *ValidationError) Kind() string { return core.KindGoalValidation }

// GenerationError reports that no valid goal set was produced within the
// attempt budget.
type GenerationError struct {
	Attempts int
	// RawResponse is the last model output.
	RawResponse string
	// Err is the last validation failure.
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("goal generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Kind implements core.Kinded.
func (e *GenerationError) Kind() string { return core.KindGoalGeneration }

// AttemptCount reports the number of generation attempts.
func (e *GenerationError) AttemptCount() int { return e.Attempts }

// Raw returns the last raw model output.
func (e *GenerationError) Raw() string { return e.RawResponse }
