package frame

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Render writes the frame as an ASCII table to w. At most limit rows are
// printed when limit > 0; a trailer reports the full shape.
func (f *Frame) Render(w io.Writer, limit int) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(f.columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)

	n := len(f.rows)
	if limit > 0 && n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		cells := make([]string, len(f.columns))
		for j, v := range f.rows[i] {
			cells[j] = FormatValue(v)
		}
		tw.Append(cells)
	}
	tw.Render()
	fmt.Fprintf(w, "[%d rows x %d columns]\n", len(f.rows), len(f.columns))
}

// FormatValue renders a cell value as display text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if isMidnightUTC(x) {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
