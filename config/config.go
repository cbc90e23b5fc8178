// Package config implements the configuration waterfall described in
// spec.md §6: constructor-supplied overrides take precedence over
// environment variables (MSR_ prefixed), which take precedence over a
// config file (msr.config.json or msr.config.js, read as JSON), which
// fall back to migrate.Defaults(). Grounded on untoldecay-BeadsLog's
// internal/config/config.go viper usage (SetEnvPrefix/AutomaticEnv/
// SetDefault/ReadInConfig), adapted from a package-global singleton to
// a per-call Load so multiple configurations can coexist in tests.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/go-msr/msr/migrate"
)

// Option overrides a single value after the env/file/defaults waterfall
// has been resolved, giving callers (the CLI's flag parsing, tests) the
// highest-precedence layer without having to round-trip through viper.
type Option func(*migrate.Configuration)

// WithFolder overrides the migrations folder.
func WithFolder(folder string) Option {
	return func(c *migrate.Configuration) { c.Folder = folder }
}

// WithTableName overrides the ledger table name.
func WithTableName(name string) Option {
	return func(c *migrate.Configuration) { c.TableName = name }
}

// WithDryRun overrides the dry-run flag.
func WithDryRun(dryRun bool) Option {
	return func(c *migrate.Configuration) { c.DryRun = dryRun }
}

// WithDisplayLimit overrides the list display limit.
func WithDisplayLimit(n int) Option {
	return func(c *migrate.Configuration) { c.DisplayLimit = n }
}

// searchPaths returns the candidate config file names, checked in order,
// the first existing one wins. MSR_CONFIG_FILE short-circuits the search.
func searchPaths() []string {
	if explicit := os.Getenv("MSR_CONFIG_FILE"); explicit != "" {
		return []string{explicit}
	}
	return []string{"msr.config.json", "msr.config.js"}
}

// Load resolves the configuration waterfall: defaults, then config file
// (if found), then MSR_-prefixed environment variables, then opts in
// the order given. Env vars and the config file are both handled by a
// single viper instance; opts are applied afterward as a final layer,
// since viper has no notion of "caller-supplied struct overrides".
func Load(opts ...Option) (migrate.Configuration, error) {
	defaults := migrate.Defaults()

	v := viper.New()
	v.SetConfigType("json")

	setDefaults(v, defaults)

	configFileFound := false
	for _, path := range searchPaths() {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			configFileFound = true
			break
		}
	}

	v.SetEnvPrefix("MSR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFileFound {
		if err := v.ReadInConfig(); err != nil {
			return migrate.Configuration{}, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	cfg := defaults
	cfg.Folder = v.GetString("folder")
	cfg.Recursive = v.GetBool("recursive")
	cfg.TableName = v.GetString("table_name")
	cfg.BeforeMigrateName = v.GetString("before_migrate_name")
	cfg.DryRun = v.GetBool("dry_run")
	cfg.DisplayLimit = v.GetInt("display_limit")
	cfg.ValidateBeforeRun = v.GetBool("validate_before_run")
	cfg.ValidateMigratedFiles = v.GetBool("validate_migrated_files")
	cfg.StrictValidation = v.GetBool("strict_validation")
	cfg.LogLevel = v.GetString("log_level")

	cfg.Logging.Enabled = v.GetBool("logging.enabled")
	cfg.Logging.Path = v.GetString("logging.path")
	cfg.Logging.MaxFiles = v.GetInt("logging.max_files")
	cfg.Logging.TimestampFormat = v.GetString("logging.timestamp_format")

	cfg.Backup.Folder = v.GetString("backup.folder")
	cfg.Backup.Prefix = v.GetString("backup.prefix")
	cfg.Backup.Suffix = v.GetString("backup.suffix")
	cfg.Backup.Extension = v.GetString("backup.extension")
	cfg.Backup.Timestamp = v.GetBool("backup.timestamp")
	cfg.Backup.TimestampFormat = v.GetString("backup.timestamp_format")
	cfg.Backup.DeleteBackup = v.GetBool("backup.delete_backup")
	cfg.Backup.ExistingBackupPath = v.GetString("backup.existing_backup_path")

	cfg.RollbackStrategy = migrate.RollbackStrategy(v.GetString("rollback_strategy"))
	cfg.BackupMode = migrate.BackupMode(v.GetString("backup_mode"))

	cfg.Transaction.Mode = migrate.TransactionMode(v.GetString("transaction.mode"))
	cfg.Transaction.Isolation = migrate.Isolation(v.GetString("transaction.isolation"))
	cfg.Transaction.Timeout = v.GetDuration("transaction.timeout")
	cfg.Transaction.Retries = v.GetInt("transaction.retries")
	cfg.Transaction.RetryDelay = v.GetDuration("transaction.retry_delay")
	cfg.Transaction.RetryBackoff = v.GetBool("transaction.retry_backoff")

	cfg.Locking.Enabled = v.GetBool("locking.enabled")
	cfg.Locking.TableName = v.GetString("locking.table_name")
	cfg.Locking.Timeout = v.GetDuration("locking.timeout")
	cfg.Locking.RetryAttempts = v.GetInt("locking.retry_attempts")
	cfg.Locking.RetryDelay = v.GetDuration("locking.retry_delay")

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg, nil
}

// setDefaults registers every field of d with viper so a partially
// populated config file or a handful of env vars still resolve to a
// complete Configuration.
func setDefaults(v *viper.Viper, d migrate.Configuration) {
	v.SetDefault("folder", d.Folder)
	v.SetDefault("recursive", d.Recursive)
	v.SetDefault("table_name", d.TableName)
	v.SetDefault("before_migrate_name", d.BeforeMigrateName)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("display_limit", d.DisplayLimit)
	v.SetDefault("validate_before_run", d.ValidateBeforeRun)
	v.SetDefault("validate_migrated_files", d.ValidateMigratedFiles)
	v.SetDefault("strict_validation", d.StrictValidation)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("logging.enabled", d.Logging.Enabled)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_files", d.Logging.MaxFiles)
	v.SetDefault("logging.timestamp_format", d.Logging.TimestampFormat)

	v.SetDefault("backup.folder", d.Backup.Folder)
	v.SetDefault("backup.prefix", d.Backup.Prefix)
	v.SetDefault("backup.suffix", d.Backup.Suffix)
	v.SetDefault("backup.extension", d.Backup.Extension)
	v.SetDefault("backup.timestamp", d.Backup.Timestamp)
	v.SetDefault("backup.timestamp_format", d.Backup.TimestampFormat)
	v.SetDefault("backup.delete_backup", d.Backup.DeleteBackup)
	v.SetDefault("backup.existing_backup_path", d.Backup.ExistingBackupPath)

	v.SetDefault("rollback_strategy", string(d.RollbackStrategy))
	v.SetDefault("backup_mode", string(d.BackupMode))

	v.SetDefault("transaction.mode", string(d.Transaction.Mode))
	v.SetDefault("transaction.isolation", string(d.Transaction.Isolation))
	v.SetDefault("transaction.timeout", d.Transaction.Timeout.String())
	v.SetDefault("transaction.retries", d.Transaction.Retries)
	v.SetDefault("transaction.retry_delay", d.Transaction.RetryDelay.String())
	v.SetDefault("transaction.retry_backoff", d.Transaction.RetryBackoff)

	v.SetDefault("locking.enabled", d.Locking.Enabled)
	v.SetDefault("locking.table_name", d.Locking.TableName)
	v.SetDefault("locking.timeout", d.Locking.Timeout.String())
	v.SetDefault("locking.retry_attempts", d.Locking.RetryAttempts)
	v.SetDefault("locking.retry_delay", d.Locking.RetryDelay.String())
}
