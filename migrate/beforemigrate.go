package migrate

import (
	"os"
	"path/filepath"
	"strings"
)

// findBeforeMigrate looks for a file directly in folder whose base name
// (with any extension(s) stripped) equals name, and that some registered
// loader can handle. It performs no recursive search: the beforeMigrate
// script is expected at the top level of the migration folder.
func findBeforeMigrate(folder, name string, reg *LoaderRegistry) *MigrationScript {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		if idx := strings.Index(base, "."); idx >= 0 {
			base = base[:idx]
		}
		if base != name {
			continue
		}
		path := filepath.Join(folder, e.Name())
		if reg != nil && !reg.CanHandle(path) {
			continue
		}
		return &MigrationScript{Name: e.Name(), Filepath: path}
	}
	return nil
}
