package migrate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TransactionMode controls how the Executor wraps script execution.
type TransactionMode string

const (
	TxNone        TransactionMode = "none"
	TxPerMigration TransactionMode = "per_migration"
	TxPerBatch     TransactionMode = "per_batch"
)

// RollbackStrategy controls how the Rollback Coordinator reacts to a
// failed batch.
type RollbackStrategy string

const (
	RollbackBackup RollbackStrategy = "backup"
	RollbackDown   RollbackStrategy = "down"
	RollbackBoth   RollbackStrategy = "both"
	RollbackNone   RollbackStrategy = "none"
)

// BackupMode controls when a backup is created and/or restored,
// orthogonal to the RollbackStrategy.
type BackupMode string

const (
	BackupFull        BackupMode = "full"
	BackupCreateOnly  BackupMode = "create_only"
	BackupRestoreOnly BackupMode = "restore_only"
	BackupManual      BackupMode = "manual"
)

// Isolation is the transaction isolation level requested for PER_MIGRATION
// and PER_BATCH modes. The concrete meaning is delegated to the DB driver.
type Isolation string

const (
	IsolationReadCommitted Isolation = "read_committed"
)

// LoggingConfig configures the rotating log sink (migrate/filelog,
// backed by lumberjack).
type LoggingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Path            string `mapstructure:"path"`
	MaxFiles        int    `mapstructure:"max_files"`
	TimestampFormat string `mapstructure:"timestamp_format"`
}

// BackupConfig configures the Backup Service.
type BackupConfig struct {
	Folder             string `mapstructure:"folder"`
	Prefix             string `mapstructure:"prefix"`
	Suffix             string `mapstructure:"suffix"`
	Extension          string `mapstructure:"extension"`
	Timestamp          bool   `mapstructure:"timestamp"`
	TimestampFormat    string `mapstructure:"timestamp_format"`
	DeleteBackup       bool   `mapstructure:"delete_backup"`
	ExistingBackupPath string `mapstructure:"existing_backup_path"`
}

// TransactionConfig configures the Executor's transaction policy.
type TransactionConfig struct {
	Mode         TransactionMode `mapstructure:"mode"`
	Isolation    Isolation       `mapstructure:"isolation"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	Retries      int             `mapstructure:"retries"`
	RetryDelay   time.Duration   `mapstructure:"retry_delay"`
	RetryBackoff bool            `mapstructure:"retry_backoff"`
}

// LockingConfig configures the Lock Service. Its constructor-time
// invariants are enforced by Validate (called from NewLockService), per spec.md §4.5.
type LockingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TableName    string        `mapstructure:"table_name"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryAttempts int          `mapstructure:"retry_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

var lockTableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate enforces the §4.5 lock configuration invariants: timeout
// positive and <= 1 hour; retryAttempts in [0,100]; retryDelay in
// [0,60s]; tableName matches ^[A-Za-z_][A-Za-z0-9_]*$ and is non-empty.
func (c LockingConfig) Validate() error {
	if c.Timeout <= 0 || c.Timeout > time.Hour {
		return fmt.Errorf("migrate: lock timeout must be positive and at most 1 hour, got %s", c.Timeout)
	}
	if c.RetryAttempts < 0 || c.RetryAttempts > 100 {
		return fmt.Errorf("migrate: lock retryAttempts must be in [0, 100], got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 || c.RetryDelay > 60*time.Second {
		return fmt.Errorf("migrate: lock retryDelay must be in [0, 60000ms], got %s", c.RetryDelay)
	}
	if strings.TrimSpace(c.TableName) == "" || !lockTableNameRE.MatchString(c.TableName) {
		return fmt.Errorf("migrate: lock tableName %q is invalid: must match %s and be non-empty", c.TableName, lockTableNameRE.String())
	}
	return nil
}

// Configuration is the process-wide, immutable-per-call settings object
// described in spec.md §3/§6.
type Configuration struct {
	Folder                string             `mapstructure:"folder"`
	Recursive              bool               `mapstructure:"recursive"`
	TableName              string             `mapstructure:"table_name"`
	FilePatterns           []*regexp.Regexp   `mapstructure:"-"`
	BeforeMigrateName      string             `mapstructure:"before_migrate_name"`
	DryRun                 bool               `mapstructure:"dry_run"`
	DisplayLimit           int                `mapstructure:"display_limit"`
	ValidateBeforeRun      bool               `mapstructure:"validate_before_run"`
	ValidateMigratedFiles  bool               `mapstructure:"validate_migrated_files"`
	StrictValidation       bool               `mapstructure:"strict_validation"`
	LogLevel               string             `mapstructure:"log_level"`
	Logging                LoggingConfig      `mapstructure:"logging"`
	Backup                 BackupConfig       `mapstructure:"backup"`
	RollbackStrategy       RollbackStrategy   `mapstructure:"rollback_strategy"`
	BackupMode             BackupMode         `mapstructure:"backup_mode"`
	Transaction            TransactionConfig  `mapstructure:"transaction"`
	Locking                LockingConfig      `mapstructure:"locking"`
}

// DefaultFilePatterns recognizes the common "<timestamp>_name.ext" and
// "<timestamp>_name.up/down.sql" conventions.
var DefaultFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)_.*$`),
}

// Defaults returns the baseline Configuration, the bottom rung of the
// waterfall described in spec.md §6.
func Defaults() Configuration {
	return Configuration{
		Folder:                "migrations",
		Recursive:              false,
		TableName:              "schema_migrations",
		FilePatterns:           DefaultFilePatterns,
		BeforeMigrateName:      "before_migrate",
		DryRun:                 false,
		DisplayLimit:           20,
		ValidateBeforeRun:      true,
		ValidateMigratedFiles:  false,
		StrictValidation:       false,
		LogLevel:               "info",
		Logging: LoggingConfig{
			Enabled:         false,
			Path:            "migrate.log",
			MaxFiles:        5,
			TimestampFormat: time.RFC3339,
		},
		Backup: BackupConfig{
			Folder:          "backups",
			Prefix:          "backup",
			Suffix:          "",
			Extension:       ".bak",
			Timestamp:       true,
			TimestampFormat: "20060102150405",
			DeleteBackup:    true,
		},
		RollbackStrategy: RollbackBackup,
		BackupMode:       BackupFull,
		Transaction: TransactionConfig{
			Mode:         TxPerMigration,
			Isolation:    IsolationReadCommitted,
			Timeout:      30 * time.Second,
			Retries:      3,
			RetryDelay:   100 * time.Millisecond,
			RetryBackoff: false,
		},
		Locking: LockingConfig{
			Enabled:       true,
			TableName:     "schema_migrations_lock",
			Timeout:       10 * time.Minute,
			RetryAttempts: 5,
			RetryDelay:    500 * time.Millisecond,
		},
	}
}
