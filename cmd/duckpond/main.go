// Command duckpond runs data flows that stage remote datasets in an embedded
// SQL engine and hand query results off to object storage.
package main

import (
	"os"

	// register every engine dialect and warehouse backend; the config picks
	// which one is used.
	_ "duckpond/internal/engine/all"
	_ "duckpond/internal/storage/all"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
