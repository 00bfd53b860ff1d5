// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render the statements duckpond needs: CREATE [TEMP] TABLE, DROP TABLE and
// multi-row INSERT.
//
// Dialects differ in identifier quoting, placeholder syntax and type names.
// Callers pass a Quoter and a TypeMapper; the rendering itself is shared.
package ddl

import (
	"fmt"
	"strings"
)

// Quoter quotes a single identifier part.
type Quoter func(string) string

// DoubleQuote is the ANSI identifier quoter used by DuckDB, SQLite and
// Postgres.
func DoubleQuote(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// QuoteFQN quotes each dot-separated part of name with q.
func QuoteFQN(name string, q Quoter) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, q(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// A column is rendered as:
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// Columns with PrimaryKey == true are collected into a trailing
// PRIMARY KEY (...) clause. Temporary tables render as CREATE TEMP TABLE.
func BuildCreateTableSQL(t TableDef, q Quoter) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}
	if q == nil {
		q = DoubleQuote
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(q(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, q(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	kw := "CREATE TABLE"
	if t.Temporary {
		kw = "CREATE TEMP TABLE"
	}
	return fmt.Sprintf("%s %s (\n  %s\n)", kw, QuoteFQN(fqn, q), strings.Join(cols, ",\n  ")), nil
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS for name.
func BuildDropTableSQL(name string, q Quoter) string {
	if q == nil {
		q = DoubleQuote
	}
	return "DROP TABLE IF EXISTS " + QuoteFQN(name, q)
}

// Placeholder returns the bind marker for the n-th (0-based) argument.
type Placeholder func(n int) string

// QuestionMark is the placeholder style of DuckDB, SQLite and MySQL.
func QuestionMark(int) string { return "?" }

// BuildInsertSQL renders a multi-row INSERT for rows rows of len(columns)
// values each.
func BuildInsertSQL(table string, columns []string, rows int, q Quoter, ph Placeholder) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("ddl: insert: table must not be empty")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("ddl: insert: columns must not be empty")
	}
	if rows <= 0 {
		return "", fmt.Errorf("ddl: insert: rows must be > 0")
	}
	if q == nil {
		q = DoubleQuote
	}
	if ph == nil {
		ph = QuestionMark
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = q(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", QuoteFQN(table, q), strings.Join(quoted, ", "))
	n := 0
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ph(n))
			n++
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}
