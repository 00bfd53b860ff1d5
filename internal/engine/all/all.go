// Package all registers every built-in engine dialect.
package all

import (
	_ "duckpond/internal/engine/duckdb"
	_ "duckpond/internal/engine/sqlite"
)
