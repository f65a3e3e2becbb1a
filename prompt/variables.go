package prompt

import "sort"

// Variables is an immutable name -> value mapping used for rendering. The zero
// value is an empty mapping. Mutating helpers return a copy.
type Variables struct {
	m map[string]string
}

// NewVariables merges the given maps left to right (later maps win).
func NewVariables(maps ...map[string]string) Variables {
	n := 0
	for _, m := range maps {
		n += len(m)
	}
	merged := make(map[string]string, n)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return Variables{m: merged}
}

// Lookup returns the value bound to name.
func (v Variables) Lookup(name string) (string, bool) {
	val, ok := v.m[name]
	return val, ok
}

// With returns a copy with name bound to value.
func (v Variables) With(name, value string) Variables {
	return NewVariables(v.m, map[string]string{name: value})
}

// Merge returns a copy with every entry of m added (m wins on conflicts).
func (v Variables) Merge(m map[string]string) Variables {
	return NewVariables(v.m, m)
}

// Len returns the number of bound names.
func (v Variables) Len() int { return len(v.m) }

// Keys returns the bound names in sorted order.
func (v Variables) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the underlying mapping.
func (v Variables) Map() map[string]string {
	return NewVariables(v.m).m
}
