package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-msr/msr/migrate"
)

// DBAdapter wraps a *sql.DB so it can serve as the migrate.DB handle
// scripts run against: it implements migrate.SQLDB for SQL-file
// migrations and migrate.Transactor for PER_MIGRATION/PER_BATCH mode.
// Code-file migrations can still type-assert the handle back to *sql.DB
// via Raw if they need dialect-specific behavior go-sqlite3 doesn't
// expose through the narrow interfaces.
type DBAdapter struct {
	db *sql.DB
}

// NewDBAdapter wraps db.
func NewDBAdapter(db *sql.DB) *DBAdapter { return &DBAdapter{db: db} }

// Raw returns the underlying *sql.DB.
func (a *DBAdapter) Raw() *sql.DB { return a.db }

var (
	_ migrate.DB         = (*DBAdapter)(nil)
	_ migrate.SQLDB       = (*DBAdapter)(nil)
	_ migrate.Transactor = (*DBAdapter)(nil)
)

// CheckConnection implements migrate.DB.
func (a *DBAdapter) CheckConnection(ctx context.Context) (bool, error) {
	if err := a.db.PingContext(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Query implements migrate.SQLDB.
func (a *DBAdapter) Query(ctx context.Context, query string) (migrate.Rows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec implements migrate.SQLDB.
func (a *DBAdapter) Exec(ctx context.Context, query string) (migrate.Result, error) {
	return a.db.ExecContext(ctx, query)
}

// BeginTx implements migrate.Transactor. The requested isolation level is
// mapped to sql.LevelDefault; go-sqlite3 only supports serializable
// transactions, so anything stricter is a no-op widening rather than an error.
func (a *DBAdapter) BeginTx(ctx context.Context, _ migrate.Isolation) (migrate.TxDB, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: begin transaction: %w", err)
	}
	return &txAdapter{tx: tx}, nil
}

type txAdapter struct {
	tx *sql.Tx
}

var _ migrate.TxDB = (*txAdapter)(nil)

func (t *txAdapter) CheckConnection(context.Context) (bool, error) { return true, nil }

func (t *txAdapter) Query(ctx context.Context, query string) (migrate.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *txAdapter) Exec(ctx context.Context, query string) (migrate.Result, error) {
	return t.tx.ExecContext(ctx, query)
}

func (t *txAdapter) Commit(context.Context) error   { return t.tx.Commit() }
func (t *txAdapter) Rollback(context.Context) error { return t.tx.Rollback() }
