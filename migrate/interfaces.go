package migrate

import "context"

// DB is the minimal external collaborator every migration run needs: a
// live connection the core can ask about, without knowing anything about
// drivers, pools, or dialects. Concrete SQL-capable loaders require more
// (see SQLDB); the core itself only ever calls CheckConnection.
type DB interface {
	// CheckConnection reports whether the database is currently reachable.
	// A false result aborts the run before any Executor work begins.
	CheckConnection(ctx context.Context) (bool, error)
}

// SQLDB is the DB a SQL-file loader needs: the ability to run a statement
// and get rows or a result back. Code-loader migrations never need this;
// they receive the DB handle and drive it however they like.
type SQLDB interface {
	DB
	Query(ctx context.Context, query string) (Rows, error)
	Exec(ctx context.Context, query string) (Result, error)
}

// Rows is the subset of database/sql.Rows the core cares about.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result is the subset of database/sql.Result the core cares about.
type Result interface {
	RowsAffected() (int64, error)
}

// BackupDriver is the external backup/restore collaborator (§6 IBackup).
type BackupDriver interface {
	// Backup produces an opaque backup blob and returns a path/handle
	// identifying it.
	Backup(ctx context.Context) (path string, err error)
	// Restore restores the database from the given path/handle.
	Restore(ctx context.Context, pathOrContent string) error
}

// SchemaVersionDriver is the external ledger storage collaborator.
type SchemaVersionDriver interface {
	IsInitialized(ctx context.Context, table string) (bool, error)
	CreateTable(ctx context.Context, table string) error
	ValidateTable(ctx context.Context, table string) error
	GetAllExecuted(ctx context.Context, table string) ([]MigrationInfo, error)
	Save(ctx context.Context, table string, info MigrationInfo) error
	Remove(ctx context.Context, table string, timestamp int64) error
}

// LockingDriver is the external distributed-lock collaborator (§4.5).
type LockingDriver interface {
	InitLockStorage(ctx context.Context, table string) error
	EnsureLockStorageAccessible(ctx context.Context, table string) error
	AcquireLock(ctx context.Context, table, ownerID string, timeoutSeconds int64) (bool, error)
	VerifyLockOwnership(ctx context.Context, table, ownerID string) (bool, error)
	ReleaseLock(ctx context.Context, table, ownerID string) error
	ForceReleaseLock(ctx context.Context, table string) error
	CheckAndReleaseExpiredLock(ctx context.Context, table string) (bool, error)
	GetLockStatus(ctx context.Context, table string) (*LockStatus, error)
}

// LockStatus snapshots the current lock row, if any.
type LockStatus struct {
	Held      bool
	OwnerID   string
	AcquiredAt int64
	ExpiresAt  int64
	ProcessID  int
}

// Handler is the opaque user-supplied value forwarded to every script
// alongside the DB handle (spec.md §9's "cyclic DB <-> handler" note).
// The core never inspects it.
type Handler any
