package migrate

// Logger and LogEntry let the core emit structured events without
// knowing anything about how they are presented; the external Renderer
// (migrate/render's default implementation, or any CLI) subscribes to
// these. This mirrors the teacher's own Logger/LogEntry/NopLogger design
// in sql/migrate/migrate.go almost exactly, generalized from "executing
// a SQL file" events to the full orchestrator lifecycle.
type (
	Logger interface {
		Log(LogEntry)
	}

	LogEntry interface {
		logEntry()
	}

	// LogScan is sent once scanning/classification completes.
	LogScan struct {
		Migrated, Pending, Ignored int
	}

	// LogLockWait describes a failed lock-acquisition attempt. The
	// renderers format it, but LockService.Acquire has no Logger and
	// retries without sending it.
	LogLockWait struct {
		Attempt, Total int
	}

	// LogLockAcquired is sent once the lock is held and verified.
	LogLockAcquired struct {
		OwnerID string
	}

	// LogBackup is sent when a backup is created or restored.
	LogBackup struct {
		Path      string
		Restoring bool
	}

	// LogScript is sent before/after a single script runs.
	LogScript struct {
		Script    *MigrationScript
		Direction string // "up" or "down"
		Done      bool
	}

	// LogDryRun is sent in place of actual execution when DryRun is set.
	LogDryRun struct {
		WouldExecute, WouldIgnore int
	}

	// LogRollback is sent when the Rollback Coordinator starts/finishes.
	LogRollback struct {
		Strategy RollbackStrategy
		Done     bool
	}

	// LogWarn carries a non-fatal warning (e.g. a swallowed hook error,
	// a scan warning, a release failure).
	LogWarn struct {
		Message string
	}

	// LogError carries a terminal error about to be surfaced in the result.
	LogError struct {
		Error error
	}

	// LogDone is sent once at the very end of a MigrateUp or DownTo call.
	LogDone struct {
		Success bool
	}

	// NopLogger discards every entry.
	NopLogger struct{}
)

func (LogScan) logEntry()         {}
func (LogLockWait) logEntry()     {}
func (LogLockAcquired) logEntry() {}
func (LogBackup) logEntry()       {}
func (LogScript) logEntry()       {}
func (LogDryRun) logEntry()       {}
func (LogRollback) logEntry()     {}
func (LogWarn) logEntry()         {}
func (LogError) logEntry()        {}
func (LogDone) logEntry()         {}

// Log implements Logger.
func (NopLogger) Log(LogEntry) {}

var _ Logger = NopLogger{}
