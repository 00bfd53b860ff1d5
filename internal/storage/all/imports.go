// Package all wires every built-in warehouse backend into the storage
// registry. Import it for side effects:
//
//	import _ "duckpond/internal/storage/all"
//
// after which storage.New accepts the kinds "postgres", "mssql", "mysql" and
// "sqlite".
package all

import (
	_ "duckpond/internal/storage/mssql"
	_ "duckpond/internal/storage/mysql"
	_ "duckpond/internal/storage/postgres"
	_ "duckpond/internal/storage/sqlite"
)
