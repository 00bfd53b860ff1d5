// Package frame provides the in-memory tabular dataset that pipelines load
// from external sources, lightly normalize, and bind into SQL.
//
// A Frame has ordered, uniquely named columns, a logical Type per column and
// a slice of rows. Cell values are restricted to a small closed set so that
// every database dialect and every output encoder can handle them:
//
//	nil, string, int64, float64, bool, time.Time
//
// Frames are immutable once built. Operations such as Rename, Map and Select
// return a new Frame and leave the receiver untouched, so a frame can be
// bound into several SQL statements and shared between goroutines.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// Frame is an immutable in-memory table.
type Frame struct {
	columns []string
	types   []Type
	rows    [][]any
	index   map[string]int

	idOnce sync.Once
	id     string
}

// New builds a Frame from column names and typed rows. Values are normalized
// (int -> int64, float32 -> float64, []byte -> string) and column types are
// derived from the values.
func New(columns []string, rows [][]any) (*Frame, error) {
	idx, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("frame: row %d has %d values, want %d", i, len(row), len(columns))
		}
		r := make([]any, len(row))
		for j, v := range row {
			nv, err := Normalize(v)
			if err != nil {
				return nil, fmt.Errorf("frame: row %d column %q: %w", i, columns[j], err)
			}
			r[j] = nv
		}
		out[i] = r
	}
	types := make([]Type, len(columns))
	for j := range columns {
		types[j] = typeOfValues(out, j)
	}
	return &Frame{
		columns: append([]string(nil), columns...),
		types:   types,
		rows:    out,
		index:   idx,
	}, nil
}

// FromStrings builds a Frame from raw text cells, inferring a type for each
// column and converting the cells accordingly. Empty (or all-space) cells
// become NULL. Short rows are padded with NULL; long rows are an error.
func FromStrings(columns []string, rows [][]string) (*Frame, error) {
	idx, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	n := len(columns)
	cols := make([][]string, n)
	for i, row := range rows {
		if len(row) > n {
			return nil, fmt.Errorf("frame: row %d has %d values, want at most %d", i, len(row), n)
		}
		for j := 0; j < n; j++ {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			cols[j] = append(cols[j], v)
		}
	}

	types := make([]Type, n)
	layouts := make([]string, n)
	for j := 0; j < n; j++ {
		types[j], layouts[j] = inferColumn(cols[j])
	}

	out := make([][]any, len(rows))
	for i := range rows {
		r := make([]any, n)
		for j := 0; j < n; j++ {
			v, err := convert(cols[j][i], types[j], layouts[j])
			if err != nil {
				return nil, fmt.Errorf("frame: row %d column %q: %w", i, columns[j], err)
			}
			r[j] = v
		}
		out[i] = r
	}

	return &Frame{
		columns: append([]string(nil), columns...),
		types:   types,
		rows:    out,
		index:   idx,
	}, nil
}

func buildIndex(columns []string) (map[string]int, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("frame: at least one column is required")
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("frame: column %d has an empty name", i)
		}
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", c)
		}
		idx[c] = i
	}
	return idx, nil
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }

// Types returns a copy of the column types in order.
func (f *Frame) Types() []Type { return append([]Type(nil), f.types...) }

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.columns) }

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	if i, ok := f.index[name]; ok {
		return i
	}
	return -1
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []any { return append([]any(nil), f.rows[i]...) }

// Value returns the cell at row i, column name.
func (f *Frame) Value(i int, name string) (any, bool) {
	j := f.Index(name)
	if j < 0 || i < 0 || i >= len(f.rows) {
		return nil, false
	}
	return f.rows[i][j], true
}

// Column returns a copy of all values of column name.
func (f *Frame) Column(name string) ([]any, error) {
	j := f.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("frame: unknown column %q", name)
	}
	out := make([]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Rename returns a frame whose columns are renamed according to m (old ->
// new). Names in m that do not exist in the frame are ignored. Renaming onto
// a name that is still in use is an error.
func (f *Frame) Rename(m map[string]string) (*Frame, error) {
	cols := f.Columns()
	for i, c := range cols {
		if to, ok := m[c]; ok {
			cols[i] = to
		}
	}
	idx, err := buildIndex(cols)
	if err != nil {
		return nil, fmt.Errorf("frame: rename: %w", err)
	}
	return &Frame{columns: cols, types: f.Types(), rows: f.rows, index: idx}, nil
}

// Map returns a frame where every value of column name is replaced by
// fn(value). The column type is re-derived from the produced values.
func (f *Frame) Map(name string, fn func(any) any) (*Frame, error) {
	j := f.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("frame: map: unknown column %q", name)
	}
	rows := make([][]any, len(f.rows))
	for i, r := range f.rows {
		nr := append([]any(nil), r...)
		v, err := Normalize(fn(r[j]))
		if err != nil {
			return nil, fmt.Errorf("frame: map %q row %d: %w", name, i, err)
		}
		nr[j] = v
		rows[i] = nr
	}
	types := f.Types()
	types[j] = typeOfValues(rows, j)
	return &Frame{columns: f.Columns(), types: types, rows: rows, index: f.index}, nil
}

// Select returns a frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	pos := make([]int, len(names))
	types := make([]Type, len(names))
	for i, n := range names {
		j := f.Index(n)
		if j < 0 {
			return nil, fmt.Errorf("frame: select: unknown column %q", n)
		}
		pos[i] = j
		types[i] = f.types[j]
	}
	idx, err := buildIndex(names)
	if err != nil {
		return nil, fmt.Errorf("frame: select: %w", err)
	}
	rows := make([][]any, len(f.rows))
	for i, r := range f.rows {
		nr := make([]any, len(pos))
		for k, j := range pos {
			nr[k] = r[j]
		}
		rows[i] = nr
	}
	return &Frame{columns: append([]string(nil), names...), types: types, rows: rows, index: idx}, nil
}

// ID returns a stable identifier derived from the frame's columns, types and
// values. Two frames with equal content share an ID.
func (f *Frame) ID() string {
	f.idOnce.Do(func() {
		h := xxh3.New()
		var buf [8]byte
		for i, c := range f.columns {
			_, _ = h.WriteString(c)
			_, _ = h.Write([]byte{0, byte(f.types[i])})
		}
		for _, r := range f.rows {
			for _, v := range r {
				switch x := v.(type) {
				case nil:
					_, _ = h.Write([]byte{0xff})
				case string:
					_, _ = h.Write([]byte{1})
					_, _ = h.WriteString(x)
				case int64:
					binary.LittleEndian.PutUint64(buf[:], uint64(x))
					_, _ = h.Write([]byte{2})
					_, _ = h.Write(buf[:])
				case float64:
					binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
					_, _ = h.Write([]byte{3})
					_, _ = h.Write(buf[:])
				case bool:
					if x {
						_, _ = h.Write([]byte{4, 1})
					} else {
						_, _ = h.Write([]byte{4, 0})
					}
				case time.Time:
					binary.LittleEndian.PutUint64(buf[:], uint64(x.UnixNano()))
					_, _ = h.Write([]byte{5})
					_, _ = h.Write(buf[:])
				}
				_, _ = h.Write([]byte{0x1f})
			}
			_, _ = h.Write([]byte{0x1e})
		}
		f.id = strconv.FormatUint(h.Sum64(), 16)
	})
	return f.id
}

// Normalize maps a Go value onto the closed set of frame cell types.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int64, float64, bool:
		return x, nil
	case time.Time:
		return x, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case []byte:
		return string(x), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
