package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the logical type of a frame column.
type Type uint8

const (
	Text Type = iota
	Integer
	Real
	Boolean
	Date
	Timestamp
)

func (t Type) String() string {
	switch t {
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	default:
		return "text"
	}
}

// dateLayouts are accepted date-only formats, tried in order. A column is
// typed as date only when one layout parses every non-empty value.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
	"02-Jan-2006",
	"2 Jan 2006",
}

// timestampLayouts are accepted formats with a time component.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05 -0700",
}

// inferColumn guesses a Type for raw text values. The heuristic requires all
// non-empty values to satisfy a narrower type; otherwise the column is text.
// For date and timestamp columns the layout that parsed every value is
// returned as well.
func inferColumn(values []string) (Type, string) {
	nonEmpty := nonEmptyTrimmed(values)
	if len(nonEmpty) == 0 {
		return Text, ""
	}
	if allMatch(nonEmpty, isInt) {
		return Integer, ""
	}
	if allMatch(nonEmpty, isBool) {
		return Boolean, ""
	}
	if allMatch(nonEmpty, isNumber) {
		return Real, ""
	}
	if layout := commonLayout(nonEmpty, timestampLayouts); layout != "" {
		return Timestamp, layout
	}
	if layout := commonLayout(nonEmpty, dateLayouts); layout != "" {
		return Date, layout
	}
	return Text, ""
}

// convert parses s according to the inferred column type.
func convert(s string, t Type, layout string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch t {
	case Integer:
		return strconv.ParseInt(s, 10, 64)
	case Real:
		return strconv.ParseFloat(s, 64)
	case Boolean:
		return parseBool(s)
	case Date, Timestamp:
		return time.Parse(layout, s)
	default:
		return s, nil
	}
}

// typeOfValues derives the column type from already-typed values. Mixed
// integer and real values widen to real; any other mix is text.
func typeOfValues(rows [][]any, j int) Type {
	seen := false
	t := Text
	for _, r := range rows {
		v := r[j]
		if v == nil {
			continue
		}
		var vt Type
		switch x := v.(type) {
		case int64:
			vt = Integer
		case float64:
			vt = Real
		case bool:
			vt = Boolean
		case time.Time:
			if isMidnightUTC(x) {
				vt = Date
			} else {
				vt = Timestamp
			}
		default:
			vt = Text
		}
		if !seen {
			t, seen = vt, true
			continue
		}
		if t == vt {
			continue
		}
		switch {
		case (t == Integer && vt == Real) || (t == Real && vt == Integer):
			t = Real
		case (t == Date && vt == Timestamp) || (t == Timestamp && vt == Date):
			t = Timestamp
		default:
			return Text
		}
	}
	return t
}

func isMidnightUTC(t time.Time) bool {
	return t.Location() == time.UTC && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func commonLayout(vals []string, layouts []string) string {
	for _, layout := range layouts {
		ok := true
		for _, v := range vals {
			if _, err := time.Parse(layout, v); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return layout
		}
	}
	return ""
}

func nonEmptyTrimmed(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isNumber accepts integers as well as decimal or scientific floats, so a
// column mixing "1" and "1.5" is real.
func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isBool accepts true and false in any case. 1/0 columns are integers and
// single-letter codes such as Y/N stay text.
func isBool(s string) bool {
	_, err := parseBool(s)
	return err == nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
