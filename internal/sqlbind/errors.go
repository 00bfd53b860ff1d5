package sqlbind

import "fmt"

// MissingBindingError reports a placeholder that has no binding.
type MissingBindingError struct {
	Name string
	// Path lists the enclosing binding names, outermost first, when the
	// placeholder sits in a nested statement.
	Path []string
}

func (e *MissingBindingError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("sqlbind: no binding for placeholder $%s", e.Name)
	}
	return fmt.Sprintf("sqlbind: no binding for placeholder $%s (in %s)", e.Name, joinPath(e.Path))
}

// UnsupportedBindingError reports a binding value of a type that cannot be
// rendered into SQL.
type UnsupportedBindingError struct {
	Name  string
	Value any
}

func (e *UnsupportedBindingError) Error() string {
	return fmt.Sprintf("sqlbind: binding %q has unsupported type %T", e.Name, e.Value)
}

// SyntaxError reports a malformed placeholder such as an unterminated ${.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sqlbind: offset %d: %s", e.Offset, e.Msg)
}

func joinPath(p []string) string {
	s := ""
	for i, n := range p {
		if i > 0 {
			s += "."
		}
		s += "$" + n
	}
	return s
}
