package prompt

import (
	"fmt"
	"strings"

	"github.com/hupe1980/personasim/core"
)

// MissingVariableError is returned when one or more placeholders have no
// binding. Names is sorted and free of duplicates.
type MissingVariableError struct {
	Names []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable(s): %s", strings.Join(e.Names, ", "))
}

// Kind implements core.Kinded.
func (e *MissingVariableError) Kind() string { return core.KindMissingVariable }

// SyntaxError reports a malformed placeholder such as an unterminated "${".
type SyntaxError struct {
	Offset int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at offset %d: %s", e.Offset, e.Reason)
}

// Kind implements core.Kinded.
func (e *SyntaxError) Kind() string { return core.KindTemplateSyntax }
