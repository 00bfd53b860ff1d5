package html

import (
	"regexp"
	"strings"
	"unicode"
)

// CollapseWhitespace replaces runs of Unicode whitespace (including the
// non-breaking spaces common in scraped tables) with one ASCII space and
// trims both ends.
func CollapseWhitespace(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	seenSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !seenSpace {
				b.WriteByte(' ')
				seenSpace = true
			}
			continue
		}
		b.WriteRune(r)
		seenSpace = false
	}
	return strings.TrimSpace(b.String())
}

var footnoteRE = regexp.MustCompile(`\[(?:[0-9]{1,3}|[a-z]|note \d+|citation needed)\]`)

// StripFootnotes removes wiki-style reference markers such as [1], [b] and
// [citation needed].
func StripFootnotes(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}
	return footnoteRE.ReplaceAllString(s, "")
}

var thousandsRE = regexp.MustCompile(`^[-+\x{2212}]?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)

// StripThousands turns "1,425,671,352" into "1425671352". Other text,
// including comma-separated lists, is returned unchanged.
func StripThousands(s string) string {
	if !thousandsRE.MatchString(s) {
		return s
	}
	s = strings.ReplaceAll(s, ",", "")
	return strings.Replace(s, "\u2212", "-", 1)
}

// NormalizeCell is the cleanup applied to every table cell.
func NormalizeCell(s string) string {
	return CollapseWhitespace(StripFootnotes(s))
}
