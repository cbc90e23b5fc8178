// Command msr drives schema migrations against a sqlite database using
// the default driver stack (migrate/sqlitestore for the ledger and
// table-based lock, migrate/dirbackup for snapshot backups,
// migrate/render for terminal output), mirroring the teacher's
// cmd/atlas entry point and command-tree structure.
package main

import (
	"os"

	"github.com/go-msr/msr/cmd/msr/internal/cmdapi"
)

func main() {
	if err := cmdapi.Root.Execute(); err != nil {
		os.Exit(1)
	}
}
