// Package parser holds helpers shared by the input parsers (csv, html) that
// turn fetched documents into frames.
package parser

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeFieldName converts header text into a lowercase ASCII identifier:
// accents are stripped, space/dash/dot become '_', everything outside
// [a-z0-9_] is dropped, and an empty result becomes "col".
func NormalizeFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.' || r == '/':
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "col"
	}
	return out
}

// UniqueNames makes names usable as frame columns: blanks become col<i>
// (1-based) and repeats get _1, _2 suffixes.
func UniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		if n == "" {
			n = "col" + strconv.Itoa(i+1)
		}
		cand := n
		for k := 1; used[cand]; k++ {
			cand = n + "_" + strconv.Itoa(k)
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}
