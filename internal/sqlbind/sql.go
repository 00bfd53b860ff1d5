// Package sqlbind pairs a SQL template with named bindings.
//
// A template refers to its bindings through $name or ${name} placeholders.
// A binding value is one node of a small expression tree:
//
//   - *frame.Frame: a leaf; it renders as the name of the temporary table the
//     executing database registers the frame under.
//   - *SQL: an inner node; it renders as a parenthesized sub-query, so
//     statements compose to any depth (staging -> derived tables).
//   - scalars (string, integers, floats, bool, nil, time.Time), Ident and
//     Raw: rendered as literals, quoted identifiers or verbatim text.
//
// Construction never fails. Rendering is pure and reports missing or
// unsupported bindings; the database layer executes the rendered text.
package sqlbind

import (
	"sort"
	"strings"
)

// Bindings maps placeholder names to values.
type Bindings map[string]any

// SQL is an immutable SQL template with its bindings.
type SQL struct {
	template string
	bindings Bindings
}

// New returns a SQL for template. The bindings map is copied; later changes to
// the caller's map do not affect the returned value.
func New(template string, bindings Bindings) *SQL {
	b := make(Bindings, len(bindings))
	for k, v := range bindings {
		b[k] = v
	}
	return &SQL{template: template, bindings: b}
}

// Template returns the raw template text.
func (s *SQL) Template() string { return s.template }

// Bindings returns a copy of the bindings.
func (s *SQL) Bindings() Bindings {
	b := make(Bindings, len(s.bindings))
	for k, v := range s.bindings {
		b[k] = v
	}
	return b
}

// Binding returns the value bound to name.
func (s *SQL) Binding(name string) (any, bool) {
	v, ok := s.bindings[name]
	return v, ok
}

// Names returns the sorted binding names.
func (s *SQL) Names() []string {
	out := make([]string, 0, len(s.bindings))
	for k := range s.bindings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String returns the trimmed template, for logs.
func (s *SQL) String() string { return strings.TrimSpace(s.template) }

// Ident is a binding value rendered as a double-quoted identifier. Dotted
// names are quoted per part.
type Ident string

// Raw is a binding value inserted verbatim. It is never escaped.
type Raw string
