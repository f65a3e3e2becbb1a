package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// segment is either literal text or a placeholder (name != "").
type segment struct {
	literal string
	name    string
}

// Template is a parsed prompt template. It is immutable and safe for
// concurrent use.
type Template struct {
	text  string
	segs  []segment
	names []string
}

// Parse compiles text into a Template.
func Parse(text string) (*Template, error) {
	t := &Template{text: text}
	seen := map[string]bool{}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segs = append(t.segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}
	placeholder := func(name string) {
		flush()
		t.segs = append(t.segs, segment{name: name})
		if !seen[name] {
			seen[name] = true
			t.names = append(t.names, name)
		}
	}

	for i := 0; i < len(text); {
		if text[i] != '$' {
			next := strings.IndexByte(text[i:], '$')
			if next < 0 {
				lit.WriteString(text[i:])
				break
			}
			lit.WriteString(text[i : i+next])
			i += next
			continue
		}

		if i+1 >= len(text) {
			lit.WriteByte('$')
			i++
			continue
		}

		switch c := text[i+1]; {
		case c == '$':
			lit.WriteByte('$')
			i += 2
		case c == '{':
			end := strings.IndexByte(text[i+2:], '}')
			if end < 0 {
				return nil, &SyntaxError{Offset: i, Reason: "unterminated placeholder"}
			}
			name := text[i+2 : i+2+end]
			if !validName(name) {
				return nil, &SyntaxError{Offset: i, Reason: fmt.Sprintf("invalid placeholder name %q", name)}
			}
			placeholder(name)
			i += end + 3
		case isIdentStart(c):
			j := i + 2
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			placeholder(text[i+1 : j])
			i = j
		default:
			lit.WriteByte('$')
			i++
		}
	}
	flush()
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for package level
// templates known to be valid.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes every placeholder. If any placeholder is unbound it
// returns *MissingVariableError naming all of them and no text.
func (t *Template) Render(vars Variables) (string, error) {
	var missing []string
	for _, n := range t.names {
		if _, ok := vars.Lookup(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingVariableError{Names: missing}
	}

	var b strings.Builder
	b.Grow(len(t.text))
	for _, s := range t.segs {
		if s.name == "" {
			b.WriteString(s.literal)
			continue
		}
		v, _ := vars.Lookup(s.name)
		b.WriteString(v)
	}
	return b.String(), nil
}

// Placeholders returns the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// String returns the source text.
func (t *Template) String() string { return t.text }

// Render parses and renders text in one step.
func Render(text string, vars Variables) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Render(vars)
}

func validName(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
