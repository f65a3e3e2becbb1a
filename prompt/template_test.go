package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/personasim/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRender(t *testing.T) {
	vars := NewVariables(map[string]string{
		"response_language":       "English",
		"self_identified_country": "Kenya",
		"age_bracket":             "26-35",
	})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{name: "no placeholders", template: "hello", expected: "hello"},
		{name: "braced", template: "Speak ${response_language}.", expected: "Speak English."},
		{name: "bare", template: "From $self_identified_country!", expected: "From Kenya!"},
		{name: "adjacent", template: "${age_bracket}${age_bracket}", expected: "26-3526-35"},
		{name: "escaped dollar", template: "costs $$5 in $self_identified_country", expected: "costs $5 in Kenya"},
		{name: "dollar before digit is literal", template: "pay $5", expected: "pay $5"},
		{name: "trailing dollar", template: "end $", expected: "end $"},
		{name: "bare name stops at punctuation", template: "$age_bracket-years", expected: "26-35-years"},
		{name: "empty template", template: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(tt.template, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestRender_MissingVariable(t *testing.T) {
	vars := NewVariables(map[string]string{"gender": "female"})

	out, err := Render("I am ${gender} and ${unknown_field}, $also_unknown, ${unknown_field}", vars)

	assert.Empty(t, out)
	var mv *MissingVariableError
	require.ErrorAs(t, err, &mv)
	assert.Equal(t, []string{"also_unknown", "unknown_field"}, mv.Names)
	assert.Contains(t, err.Error(), "unknown_field")
	assert.Equal(t, core.KindMissingVariable, core.Describe(err).Kind)
}

func TestParse_SyntaxErrors(t *testing.T) {
	for _, text := range []string{"${unterminated", "${}", "${bad name}", "${1abc}"} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "expected SyntaxError, got %v", err)
		})
	}
}

func TestTemplate_Placeholders(t *testing.T) {
	tmpl := MustParse("$b ${a} ${b} $$c $a")
	assert.Equal(t, []string{"b", "a"}, tmpl.Placeholders())
	assert.Equal(t, "$b ${a} ${b} $$c $a", tmpl.String())
}

func TestVariables_Immutable(t *testing.T) {
	src := map[string]string{"k": "v"}
	v := NewVariables(src)
	src["k"] = "changed"

	got, ok := v.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	w := v.With("k", "other").Merge(map[string]string{"n": "1"})
	got, _ = v.Lookup("k")
	assert.Equal(t, "v", got)
	got, _ = w.Lookup("k")
	assert.Equal(t, "other", got)
	assert.Equal(t, []string{"k", "n"}, w.Keys())
	assert.Equal(t, 1, v.Len())

	m := w.Map()
	m["k"] = "mutated"
	got, _ = w.Lookup("k")
	assert.Equal(t, "other", got)
}

var identGen = rapid.StringMatching(`[a-z_][a-z0-9_]{0,8}`)

func TestRender_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfNDistinct(identGen, 1, 6, func(s string) string { return s }).Draw(rt, "names")
		bindings := map[string]string{}
		var sb strings.Builder
		for i, n := range names {
			bindings[n] = rapid.StringMatching(`[A-Za-z0-9 .,]{0,12}`).Draw(rt, "value")
			sb.WriteString(rapid.StringMatching(`[A-Za-z .,]{0,10}`).Draw(rt, "literal"))
			if i%2 == 0 {
				sb.WriteString("${" + n + "}")
			} else {
				sb.WriteString("$" + n + " ")
			}
		}
		text := sb.String()
		vars := NewVariables(bindings)

		first, err := Render(text, vars)
		require.NoError(rt, err)
		second, err := Render(text, vars)
		require.NoError(rt, err)

		// deterministic
		assert.Equal(rt, first, second)
		// complete: values never contain '$', so any '$' left would be an unresolved marker
		assert.NotContains(rt, first, "$")
	})
}

func TestRender_PropertyMissingNeverPartial(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bound := identGen.Draw(rt, "bound")
		unbound := identGen.Filter(func(s string) bool { return s != bound }).Draw(rt, "unbound")
		text := "x ${" + bound + "} y ${" + unbound + "} z"

		out, err := Render(text, NewVariables(map[string]string{bound: "v"}))
		var mv *MissingVariableError
		require.ErrorAs(rt, err, &mv)
		assert.Equal(rt, []string{unbound}, mv.Names)
		assert.Empty(rt, out)
	})
}
