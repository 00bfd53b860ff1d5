package pond

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"duckpond/internal/frame"
	"duckpond/internal/parser"
)

const parquetParallelism = 4

type schemaField struct {
	Tag string `json:"Tag"`
}

type parquetSchema struct {
	Tag    string        `json:"Tag"`
	Fields []schemaField `json:"Fields"`
}

// parquetColumnName restricts a column name to what the parquet writer
// accepts: a leading letter, then letters, digits and '_'.
func parquetColumnName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '_'
		}
	}
	out := string(b)
	if out == "" || !(out[0] >= 'a' && out[0] <= 'z' || out[0] >= 'A' && out[0] <= 'Z') {
		out = "c" + out
	}
	return out
}

func parquetTag(name string, t frame.Type) string {
	var typ string
	switch t {
	case frame.Integer:
		typ = "type=INT64"
	case frame.Real:
		typ = "type=DOUBLE"
	case frame.Boolean:
		typ = "type=BOOLEAN"
	case frame.Date:
		typ = "type=INT32, convertedtype=DATE"
	case frame.Timestamp:
		typ = "type=INT64, convertedtype=TIMESTAMP_MICROS"
	default:
		typ = "type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"
	}
	return "name=" + name + ", " + typ + ", repetitiontype=OPTIONAL"
}

func parquetValue(v any, t frame.Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case frame.Integer:
		if n, ok := v.(int64); ok {
			return n
		}
	case frame.Real:
		switch n := v.(type) {
		case float64:
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return nil
			}
			return n
		case int64:
			return float64(n)
		}
	case frame.Boolean:
		if b, ok := v.(bool); ok {
			return b
		}
	case frame.Date:
		if ts, ok := v.(time.Time); ok {
			return int32(ts.UTC().Truncate(24*time.Hour).Unix() / 86400)
		}
	case frame.Timestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UnixMicro()
		}
	default:
		return frame.FormatValue(v)
	}
	return frame.FormatValue(v)
}

// WriteParquet encodes f as a Snappy-compressed Parquet file at path. The
// file is written next to path and renamed into place.
func WriteParquet(path string, f *frame.Frame) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("pond: parquet: %w", err)
	}
	tmp := path + ".tmp"
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return fmt.Errorf("pond: parquet: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if err := encodeParquet(fw, f); err != nil {
		fw.Close()
		return err
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("pond: parquet: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("pond: parquet: %w", err)
	}
	return nil
}

func encodeParquet(fw source.ParquetFile, f *frame.Frame) error {
	cols := make([]string, f.Width())
	for i, c := range f.Columns() {
		cols[i] = parquetColumnName(c)
	}
	cols = parser.UniqueNames(cols)
	types := f.Types()

	sch := parquetSchema{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for i, c := range cols {
		sch.Fields = append(sch.Fields, schemaField{Tag: parquetTag(c, types[i])})
	}
	schemaJSON, err := json.Marshal(sch)
	if err != nil {
		return fmt.Errorf("pond: parquet: schema: %w", err)
	}

	pw, err := writer.NewJSONWriter(string(schemaJSON), fw, parquetParallelism)
	if err != nil {
		return fmt.Errorf("pond: parquet: writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rec := make(map[string]any, len(cols))
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i)
		for j, c := range cols {
			rec[c] = parquetValue(row[j], types[j])
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("pond: parquet: row %d: %w", i, err)
		}
		if err := pw.Write(string(b)); err != nil {
			return fmt.Errorf("pond: parquet: row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("pond: parquet: flush: %w", err)
	}
	return nil
}

// ReadParquet decodes a Parquet file written by WriteParquet into a frame.
func ReadParquet(path string) (*frame.Frame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("pond: parquet: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("pond: parquet: reader: %w", err)
	}
	defer pr.ReadStop()

	elems := pr.SchemaHandler.SchemaElements
	if len(elems) < 2 {
		return nil, fmt.Errorf("pond: parquet: %s has no columns", path)
	}
	leaves := elems[1:]
	// Element names are the reader's exported Go field names; the column
	// names stored in the file are the external names.
	cols := make([]string, len(leaves))
	for i := range leaves {
		cols[i] = pr.SchemaHandler.GetExName(i + 1)
	}

	n := int(pr.GetNumRows())
	rows := make([][]any, 0, n)
	if n > 0 {
		recs, err := pr.ReadByNumber(n)
		if err != nil {
			return nil, fmt.Errorf("pond: parquet: read: %w", err)
		}
		for _, r := range recs {
			rv := reflect.ValueOf(r)
			for rv.Kind() == reflect.Pointer {
				rv = rv.Elem()
			}
			row := make([]any, len(leaves))
			for j := range leaves {
				row[j] = fromParquet(rv.Field(j), leaves[j])
			}
			rows = append(rows, row)
		}
	}
	return frame.New(cols, rows)
}

func fromParquet(v reflect.Value, e *parquet.SchemaElement) any {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if e.ConvertedType != nil {
		switch *e.ConvertedType {
		case parquet.ConvertedType_DATE:
			return time.Unix(v.Int()*86400, 0).UTC()
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return time.UnixMicro(v.Int()).UTC()
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return time.UnixMilli(v.Int()).UTC()
		}
	}
	switch v.Kind() {
	case reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return strings.Clone(v.String())
	}
	return fmt.Sprint(v.Interface())
}
