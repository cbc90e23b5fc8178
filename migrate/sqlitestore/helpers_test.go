package sqlitestore_test

import "github.com/go-msr/msr/migrate"

func migrationInfo(ts int64, name string) migrate.MigrationInfo {
	return migrate.MigrationInfo{Timestamp: ts, Name: name}
}
