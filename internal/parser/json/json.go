// Package json reads JSON documents into frames. Three shapes are accepted:
//
//   - a root array of objects: [ {...}, {...} ]
//   - a root object wrapping the records in an array-of-objects field:
//     { "items": [ {...} ] }
//   - a stream of objects (NDJSON); a lone object is one record.
//
// Columns appear in order of first use. Keys of a single object are taken in
// sorted order since decoding into a map loses the document order.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"duckpond/internal/frame"
	"duckpond/internal/parser"
)

// Options controls ReadFrame.
type Options struct {
	// Field names the array inside a root object that holds the records.
	// When empty the first array-of-objects field (by name) is used.
	Field string

	// NormalizeHeaders rewrites keys into lowercase ASCII identifiers.
	NormalizeHeaders bool

	// MaxRows stops after this many records when > 0.
	MaxRows int
}

// ReadFrame decodes r into a frame.
func ReadFrame(ctx context.Context, r io.Reader, opt Options) (*frame.Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var recs []map[string]any
	full := func() bool { return opt.MaxRows > 0 && len(recs) >= opt.MaxRows }

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("json: empty input")
		}
		return nil, fmt.Errorf("json: decode root: %w", err)
	}
	switch v := root.(type) {
	case []any:
		for i, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("json: element %d is %T, want object", i, elem)
			}
			if full() {
				break
			}
			recs = append(recs, obj)
		}
	case map[string]any:
		slice, err := objectSlice(v, opt.Field)
		if err != nil {
			return nil, err
		}
		if slice == nil {
			recs = append(recs, v)
		} else {
			recs = slice
		}
	default:
		return nil, fmt.Errorf("json: unsupported root type %T (want object or array)", v)
	}

	for !full() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var obj map[string]any
		err := dec.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("json: record %d: %w", len(recs)+1, err)
		}
		recs = append(recs, obj)
	}
	if opt.MaxRows > 0 && len(recs) > opt.MaxRows {
		recs = recs[:opt.MaxRows]
	}
	return toFrame(recs, opt.NormalizeHeaders)
}

// objectSlice returns the records wrapped in obj, or nil when obj is itself
// a record.
func objectSlice(obj map[string]any, field string) ([]map[string]any, error) {
	if field != "" {
		v, ok := obj[field]
		if !ok {
			return nil, fmt.Errorf("json: field %q not found", field)
		}
		out, ok := asObjects(v)
		if !ok {
			return nil, fmt.Errorf("json: field %q is not an array of objects", field)
		}
		return out, nil
	}
	keys := sortedKeys(obj)
	for _, k := range keys {
		if out, ok := asObjects(obj[k]); ok && len(out) > 0 {
			return out, nil
		}
	}
	return nil, nil
}

func asObjects(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	return out, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFrame(recs []map[string]any, normalize bool) (*frame.Frame, error) {
	var keys []string
	index := map[string]int{}
	for _, rec := range recs {
		for _, k := range sortedKeys(rec) {
			if _, ok := index[k]; !ok {
				index[k] = len(keys)
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("json: no fields")
	}

	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(keys))
		for k, v := range rec {
			row[index[k]] = cell(v)
		}
		rows[i] = row
	}

	cols := keys
	if normalize {
		cols = make([]string, len(keys))
		for i, k := range keys {
			cols[i] = parser.NormalizeFieldName(k)
		}
	}
	return frame.New(parser.UniqueNames(cols), rows)
}

// cell maps a decoded JSON value onto a frame value. Nested values are kept
// as compact JSON text.
func cell(v any) any {
	switch x := v.(type) {
	case nil, string, bool:
		return x
	case json.Number:
		if n, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
