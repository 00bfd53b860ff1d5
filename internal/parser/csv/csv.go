// Package csv reads delimited text into frames. Rows that fail to parse or
// have the wrong width are skipped and counted rather than aborting the
// load, which matches how pipelines treat dirty public data.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"duckpond/internal/frame"
	"duckpond/internal/parser"
)

const utf8BOM = "\uFEFF"

// maxLoggedSkips caps per-row warnings for one input.
const maxLoggedSkips = 20

// Options configures parsing. The zero value reads comma-separated input
// with a header row, headers kept as written.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// NoHeader treats the first row as data; columns are named col1..colN.
	NoHeader bool

	// NormalizeHeaders rewrites headers into lowercase ASCII identifiers.
	NormalizeHeaders bool

	// HeaderMap renames headers (after normalization, when enabled).
	HeaderMap map[string]string

	// TrimSpace trims each cell.
	TrimSpace bool

	// LazyQuotes relaxes quote handling in encoding/csv.
	LazyQuotes bool

	// Replacements are applied to the raw byte stream before parsing.
	Replacements []Replacement

	// MaxRows stops reading after this many data rows when > 0.
	MaxRows int
}

// Stats describes one read.
type Stats struct {
	Rows    int
	Skipped int
}

// Stream reads the header, calls onHeader once, then sends every valid row
// to out. Invalid rows are reported through onError (when non-nil) and
// skipped. Stream does not close out.
func Stream(ctx context.Context, r io.Reader, opt Options, onHeader func([]string), out chan<- []string, onError func(line int, err error)) (Stats, error) {
	var st Stats
	cr := csv.NewReader(withReplacements(r, opt.Replacements))
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return st, fmt.Errorf("csv: empty input")
	}
	if err != nil {
		return st, fmt.Errorf("csv: read header: %w", err)
	}
	if len(first) > 0 {
		first[0] = strings.TrimPrefix(first[0], utf8BOM)
	}

	var headers []string
	var pending []string
	if opt.NoHeader {
		headers = parser.UniqueNames(make([]string, len(first)))
		pending = first
	} else {
		headers = normalizeHeaders(first, opt)
	}
	onHeader(headers)
	width := len(headers)

	emit := func(row []string) error {
		cells := make([]string, len(row))
		for i, v := range row {
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			cells[i] = v
		}
		select {
		case out <- cells:
			st.Rows++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if pending != nil {
		if err := emit(pending); err != nil {
			return st, err
		}
	}

	for line := 2; opt.MaxRows <= 0 || st.Rows < opt.MaxRows; line++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil && len(row) != width {
			err = fmt.Errorf("incorrect number of fields: expected %d, got %d", width, len(row))
		}
		if err != nil {
			st.Skipped++
			if onError != nil {
				onError(line, err)
			}
			continue
		}
		if err := emit(row); err != nil {
			return st, err
		}
	}
	return st, nil
}

// ReadFrame parses all of r into a frame with inferred column types.
func ReadFrame(ctx context.Context, r io.Reader, opt Options) (*frame.Frame, Stats, error) {
	var headers []string
	var rows [][]string
	out := make(chan []string, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for row := range out {
			rows = append(rows, row)
		}
	}()

	logged := 0
	st, err := Stream(ctx, r, opt, func(h []string) { headers = h }, out, func(line int, err error) {
		if logged < maxLoggedSkips {
			logged++
			log.WithField("line", line).WithError(err).Debug("csv: skipping row")
		}
	})
	close(out)
	<-done
	if err != nil {
		return nil, st, err
	}
	if st.Skipped > 0 {
		log.WithFields(log.Fields{"rows": st.Rows, "skipped": st.Skipped}).Warn("csv: skipped malformed rows")
	}

	f, err := frame.FromStrings(headers, rows)
	if err != nil {
		return nil, st, fmt.Errorf("csv: %w", err)
	}
	return f, st, nil
}

func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if opt.NormalizeHeaders {
			c = parser.NormalizeFieldName(c)
		}
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		res[i] = c
	}
	return parser.UniqueNames(res)
}
