package sqlbind

import (
	"math"
	"strconv"
	"strings"
	"time"

	"duckpond/internal/frame"
)

// Rendered is the executable form of a SQL value.
type Rendered struct {
	// Query is the template text with every placeholder substituted.
	Query string
	// Frames maps each registered table name used in Query to its frame.
	Frames map[string]*frame.Frame
}

// FrameTable returns the table name a frame is registered under.
func FrameTable(f *frame.Frame) string { return "df_" + f.ID() }

// Render substitutes all placeholders, recursing into nested statements.
func (s *SQL) Render() (Rendered, error) {
	r := Rendered{Frames: map[string]*frame.Frame{}}
	q, err := s.render(nil, r.Frames)
	if err != nil {
		return Rendered{}, err
	}
	r.Query = q
	return r, nil
}

// Placeholders returns the distinct placeholder names used by the template,
// in order of first appearance. Nested statements are not inspected.
func (s *SQL) Placeholders() ([]string, error) {
	var names []string
	seen := map[string]bool{}
	err := scan(s.template, func(string) {}, func(name string) error {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

func (s *SQL) render(path []string, frames map[string]*frame.Frame) (string, error) {
	var b strings.Builder
	b.Grow(len(s.template))
	err := scan(s.template, func(lit string) { b.WriteString(lit) }, func(name string) error {
		v, ok := s.bindings[name]
		if !ok {
			return &MissingBindingError{Name: name, Path: append([]string(nil), path...)}
		}
		text, err := renderValue(name, v, append(path, name), frames)
		if err != nil {
			return err
		}
		b.WriteString(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderValue(name string, v any, path []string, frames map[string]*frame.Frame) (string, error) {
	switch x := v.(type) {
	case *frame.Frame:
		if x == nil {
			return "", &UnsupportedBindingError{Name: name, Value: v}
		}
		t := FrameTable(x)
		frames[t] = x
		return t, nil
	case *SQL:
		if x == nil {
			return "", &UnsupportedBindingError{Name: name, Value: v}
		}
		inner, err := x.render(path, frames)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case nil:
		return "null", nil
	case string:
		return QuoteLiteral(x), nil
	case Ident:
		return QuoteIdent(string(x)), nil
	case Raw:
		return string(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(name, float64(x), 32)
	case float64:
		return formatFloat(name, x, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return QuoteLiteral(x.Format("2006-01-02")), nil
		}
		return QuoteLiteral(x.Format("2006-01-02 15:04:05.999999999Z07:00")), nil
	default:
		return "", &UnsupportedBindingError{Name: name, Value: v}
	}
}

func formatFloat(name string, f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &UnsupportedBindingError{Name: name, Value: f}
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteIdent renders a possibly dotted name as double-quoted identifiers.
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// scan walks a template, calling lit for literal text and sub for each
// placeholder name.
func scan(tpl string, lit func(string), sub func(string) error) error {
	start := 0
	for i := 0; i < len(tpl); i++ {
		if tpl[i] != '$' || i+1 >= len(tpl) {
			continue
		}
		next := tpl[i+1]
		switch {
		case next == '$':
			lit(tpl[start:i])
			lit("$")
			i++
			start = i + 1
		case next == '{':
			end := strings.IndexByte(tpl[i+2:], '}')
			if end < 0 {
				return &SyntaxError{Offset: i, Msg: "unterminated ${"}
			}
			name := tpl[i+2 : i+2+end]
			if !validName(name) {
				return &SyntaxError{Offset: i, Msg: "invalid placeholder name " + strconv.Quote(name)}
			}
			lit(tpl[start:i])
			if err := sub(name); err != nil {
				return err
			}
			i = i + 2 + end
			start = i + 1
		case isNameStart(next):
			j := i + 2
			for j < len(tpl) && isNamePart(tpl[j]) {
				j++
			}
			lit(tpl[start:i])
			if err := sub(tpl[i+1 : j]); err != nil {
				return err
			}
			i = j - 1
			start = j
		}
	}
	lit(tpl[start:])
	return nil
}

func validName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNamePart(s[i]) {
			return false
		}
	}
	return true
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
