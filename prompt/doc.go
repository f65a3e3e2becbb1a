// Package prompt implements the restricted placeholder substitution used to
// turn persona and agent configuration into concrete prompts.
//
// The syntax is deliberately small:
//
//	${name}   placeholder (braced form)
//	$name     placeholder (bare form), name matches [A-Za-z_][A-Za-z0-9_]*
//	$$        a literal dollar sign
//
// A dollar sign followed by anything else is literal text. There are no
// functions, conditionals or loops, so rendering is pure and deterministic and
// a template cannot execute code. Every placeholder must resolve: rendering
// fails with *MissingVariableError rather than emitting partial text.
package prompt
