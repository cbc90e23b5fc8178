// Package cmdapi holds the msr command tree, grounded on the teacher's
// own cmd/atlas/internal/cmdapi package split (a single Root command,
// global persistent flags, verbs registered via init()).
package cmdapi

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-msr/msr/config"
	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/dirbackup"
	"github.com/go-msr/msr/migrate/filelock"
	"github.com/go-msr/msr/migrate/filelog"
	"github.com/go-msr/msr/migrate/render"
	"github.com/go-msr/msr/migrate/sqlitestore"
)

// Root is the msr command tree's entry point.
var Root = &cobra.Command{
	Use:           "msr",
	Short:         "A schema migration execution orchestrator.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// globalFlags holds the flags every verb accepts, in the style of the
// teacher's addGlobalFlags(cmd.PersistentFlags()).
var globalFlags struct {
	dsn        string
	folder     string
	configFile string
	lockDir    string
}

func init() {
	Root.PersistentFlags().StringVar(&globalFlags.dsn, "dsn", "migrations.db", "path to the sqlite database file")
	Root.PersistentFlags().StringVar(&globalFlags.folder, "folder", "", "migrations folder (overrides config)")
	Root.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "path to msr.config.json/js (sets MSR_CONFIG_FILE)")
	Root.PersistentFlags().StringVar(&globalFlags.lockDir, "lock-dir", "", "use a local file lock in this directory instead of the sqlite table lock")
}

// loadConfig resolves the configuration waterfall and layers the
// command-line flags on top, the highest-precedence rung.
func loadConfig() (migrate.Configuration, error) {
	if globalFlags.configFile != "" {
		if err := os.Setenv("MSR_CONFIG_FILE", globalFlags.configFile); err != nil {
			return migrate.Configuration{}, fmt.Errorf("msr: setting MSR_CONFIG_FILE: %w", err)
		}
	}
	var opts []config.Option
	if globalFlags.folder != "" {
		opts = append(opts, config.WithFolder(globalFlags.folder))
	}
	return config.Load(opts...)
}

// collaborators bundles the default sqlite-backed stack wired for a DSN:
// the ledger/lock storage, the DB handle scripts run against, the
// backup driver, and the loader registry (SQL + code).
type collaborators struct {
	store   *sqlitestore.Store
	db      *sqlitestore.DBAdapter
	backup  *dirbackup.Driver
	loaders *migrate.LoaderRegistry
	logger  migrate.Logger
}

func wire(cfg migrate.Configuration) (*collaborators, func(), error) {
	store, err := sqlitestore.Open(globalFlags.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("msr: opening %q: %w", globalFlags.dsn, err)
	}
	db := sqlitestore.NewDBAdapter(store.Raw())
	// Snapshot just the directory the database file lives in, not the
	// process's working directory: the backup only needs to cover the
	// database itself, and "." could be an arbitrarily large tree.
	dbDir := filepath.Dir(globalFlags.dsn)
	backupDriver := dirbackup.New(dbDir, cfg.Backup.Folder)
	backupDriver.Prefix = cfg.Backup.Prefix

	loaders := migrate.NewLoaderRegistry(migrate.SQLLoader{}, migrate.NewCodeLoader())

	loggers := []migrate.Logger{render.New()}
	var fileLogger *filelog.Logger
	if cfg.Logging.Enabled {
		fileLogger = filelog.New(cfg.Logging.Path, cfg.Logging.MaxFiles, cfg.Logging.TimestampFormat)
		loggers = append(loggers, fileLogger)
	}

	cleanup := func() {
		if fileLogger != nil {
			_ = fileLogger.Close()
		}
		_ = store.Close()
	}
	return &collaborators{
		store:   store,
		db:      db,
		backup:  backupDriver,
		loaders: loaders,
		logger:  filelog.MultiLogger{Loggers: loggers},
	}, cleanup, nil
}

// lockDriver returns the lock collaborator appropriate for the
// configuration: the shared sqlite table by default, or the local
// file-based lock when --lock-dir is set, letting the locking backend
// be swapped independently of the ledger backend per spec.md §4.5.
func lockDriver(store *sqlitestore.Store) migrate.LockingDriver {
	if globalFlags.lockDir != "" {
		return filelock.New(globalFlags.lockDir)
	}
	return store
}
