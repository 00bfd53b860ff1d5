package ddl

import (
	"fmt"

	"duckpond/internal/frame"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DOUBLE)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g., 'anon', CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name (FQN) and an ordered list of columns. The FQN
// may be dotted ("schema.table"); each part is quoted separately.
type TableDef struct {
	FQN       string
	Columns   []ColumnDef
	Temporary bool
}

// TypeMapper maps a frame column type onto a dialect's SQL type.
type TypeMapper func(frame.Type) string

// FromFrame derives a TableDef from a frame's columns and inferred types.
// All columns are nullable; frames carry no key information.
func FromFrame(fqn string, f *frame.Frame, mapType TypeMapper) (TableDef, error) {
	if f == nil {
		return TableDef{}, fmt.Errorf("ddl: nil frame")
	}
	if mapType == nil {
		return TableDef{}, fmt.Errorf("ddl: nil type mapper")
	}
	cols := f.Columns()
	types := f.Types()
	defs := make([]ColumnDef, len(cols))
	for i, c := range cols {
		defs[i] = ColumnDef{Name: c, SQLType: mapType(types[i]), Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: defs}, nil
}
