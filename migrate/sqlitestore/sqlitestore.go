// Package sqlitestore provides the default SchemaVersionDriver and
// LockingDriver, backed by database/sql and github.com/mattn/go-sqlite3.
// It plays the role the teacher's RevisionReadWriter storage plays for
// sql/migrate, generalized from a single dialect-specific implementation
// to a standalone driver any DB interface implementation can delegate to.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-msr/msr/migrate"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store wraps a *sql.DB opened against a go-sqlite3 data source and
// implements both migrate.SchemaVersionDriver and migrate.LockingDriver.
type Store struct {
	db *sql.DB
}

// Open opens dsn (a go-sqlite3 data source, e.g. "file:migrations.db") and
// returns a Store over it. Callers are responsible for closing it via Close.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %q: %w", dsn, err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open *sql.DB.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Close closes the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

// Raw exposes the underlying *sql.DB so callers can build a DBAdapter
// (or any other DB/SQLDB implementation) over the same connection the
// ledger and lock tables live in.
func (s *Store) Raw() *sql.DB { return s.db }

func validIdent(table string) error {
	if !identRE.MatchString(table) {
		return fmt.Errorf("sqlitestore: invalid table name %q", table)
	}
	return nil
}

// --- SchemaVersionDriver -------------------------------------------------

var _ migrate.SchemaVersionDriver = (*Store)(nil)

// IsInitialized reports whether table already exists.
func (s *Store) IsInitialized(ctx context.Context, table string) (bool, error) {
	if err := validIdent(table); err != nil {
		return false, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table)
	var name string
	switch err := row.Scan(&name); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("sqlitestore: checking table %q: %w", table, err)
	}
}

// CreateTable creates the ledger table. timestamp is the migration
// version; started_at/finished_at are unix millis; content_hash is the
// optional sha256 digest recorded with each applied migration.
func (s *Store) CreateTable(ctx context.Context, table string) error {
	if err := validIdent(table); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		timestamp INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		started_at INTEGER NOT NULL DEFAULT 0,
		finished_at INTEGER NOT NULL DEFAULT 0,
		username TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT ''
	)`, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlitestore: creating table %q: %w", table, err)
	}
	return nil
}

// ValidateTable checks that table has the expected columns.
func (s *Store) ValidateTable(ctx context.Context, table string) error {
	if err := validIdent(table); err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("sqlitestore: validating table %q: %w", table, err)
	}
	defer rows.Close()
	required := map[string]bool{
		"timestamp": false, "name": false, "started_at": false,
		"finished_at": false, "username": false, "result": false, "content_hash": false,
	}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("sqlitestore: validating table %q: %w", table, err)
		}
		if _, ok := required[name]; ok {
			required[name] = true
		}
	}
	for col, present := range required {
		if !present {
			return fmt.Errorf("sqlitestore: table %q is missing required column %q", table, col)
		}
	}
	return rows.Err()
}

// GetAllExecuted returns every ledger row.
func (s *Store) GetAllExecuted(ctx context.Context, table string) ([]migrate.MigrationInfo, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT timestamp, name, started_at, finished_at, username, result, content_hash FROM %s ORDER BY timestamp ASC`, table))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: reading %q: %w", table, err)
	}
	defer rows.Close()
	var out []migrate.MigrationInfo
	for rows.Next() {
		var info migrate.MigrationInfo
		if err := rows.Scan(&info.Timestamp, &info.Name, &info.StartedAt, &info.FinishedAt, &info.Username, &info.Result, &info.ContentHash); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning %q: %w", table, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Save inserts or replaces a ledger row.
func (s *Store) Save(ctx context.Context, table string, info migrate.MigrationInfo) error {
	if err := validIdent(table); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(timestamp, name, started_at, finished_at, username, result, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	_, err := s.db.ExecContext(ctx, stmt, info.Timestamp, info.Name, info.StartedAt, info.FinishedAt, info.Username, info.Result, info.ContentHash)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving %d into %q: %w", info.Timestamp, table, err)
	}
	return nil
}

// Remove deletes a ledger row by timestamp.
func (s *Store) Remove(ctx context.Context, table string, timestamp int64) error {
	if err := validIdent(table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE timestamp = ?`, table), timestamp)
	if err != nil {
		return fmt.Errorf("sqlitestore: removing %d from %q: %w", timestamp, table, err)
	}
	return nil
}

// --- LockingDriver --------------------------------------------------------

var _ migrate.LockingDriver = (*Store)(nil)

// InitLockStorage creates the single-row lock table.
func (s *Store) InitLockStorage(ctx context.Context, table string) error {
	if err := validIdent(table); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		owner_id TEXT NOT NULL DEFAULT '',
		acquired_at INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL DEFAULT 0,
		process_id INTEGER NOT NULL DEFAULT 0
	)`, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlitestore: creating lock table %q: %w", table, err)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT OR IGNORE INTO %s (id, owner_id) VALUES (1, '')`, table))
	if err != nil {
		return fmt.Errorf("sqlitestore: seeding lock table %q: %w", table, err)
	}
	return nil
}

// EnsureLockStorageAccessible verifies the row can be read.
func (s *Store) EnsureLockStorageAccessible(ctx context.Context, table string) error {
	if err := validIdent(table); err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT owner_id FROM %s WHERE id = 1`, table))
	var owner string
	if err := row.Scan(&owner); err != nil {
		return fmt.Errorf("sqlitestore: lock table %q unreachable: %w", table, err)
	}
	return nil
}

// AcquireLock claims the single lock row iff it is currently unheld or
// expired, in one statement so concurrent callers cannot both succeed.
func (s *Store) AcquireLock(ctx context.Context, table, ownerID string, timeoutSeconds int64) (bool, error) {
	if err := validIdent(table); err != nil {
		return false, err
	}
	now := time.Now().UnixMilli()
	expires := now + timeoutSeconds*1000
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET owner_id = ?, acquired_at = ?, expires_at = ?
		 WHERE id = 1 AND (owner_id = '' OR expires_at < ?)`, table),
		ownerID, now, expires, now)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: acquiring lock in %q: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: acquiring lock in %q: %w", table, err)
	}
	return n == 1, nil
}

// VerifyLockOwnership reports whether ownerID currently holds the lock.
func (s *Store) VerifyLockOwnership(ctx context.Context, table, ownerID string) (bool, error) {
	if err := validIdent(table); err != nil {
		return false, err
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT owner_id FROM %s WHERE id = 1`, table))
	var owner string
	if err := row.Scan(&owner); err != nil {
		return false, fmt.Errorf("sqlitestore: verifying lock in %q: %w", table, err)
	}
	return owner == ownerID, nil
}

// ReleaseLock clears the row iff still held by ownerID.
func (s *Store) ReleaseLock(ctx context.Context, table, ownerID string) error {
	if err := validIdent(table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET owner_id = '', acquired_at = 0, expires_at = 0 WHERE id = 1 AND owner_id = ?`, table), ownerID)
	if err != nil {
		return fmt.Errorf("sqlitestore: releasing lock in %q: %w", table, err)
	}
	return nil
}

// ForceReleaseLock unconditionally clears the row.
func (s *Store) ForceReleaseLock(ctx context.Context, table string) error {
	if err := validIdent(table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET owner_id = '', acquired_at = 0, expires_at = 0 WHERE id = 1`, table))
	if err != nil {
		return fmt.Errorf("sqlitestore: force-releasing lock in %q: %w", table, err)
	}
	return nil
}

// CheckAndReleaseExpiredLock clears the row if its expires_at has passed,
// reporting whether it did so.
func (s *Store) CheckAndReleaseExpiredLock(ctx context.Context, table string) (bool, error) {
	if err := validIdent(table); err != nil {
		return false, err
	}
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET owner_id = '', acquired_at = 0, expires_at = 0
		 WHERE id = 1 AND owner_id != '' AND expires_at < ?`, table), now)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: releasing expired lock in %q: %w", table, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetLockStatus returns the current lock row.
func (s *Store) GetLockStatus(ctx context.Context, table string) (*migrate.LockStatus, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT owner_id, acquired_at, expires_at, process_id FROM %s WHERE id = 1`, table))
	var status migrate.LockStatus
	if err := row.Scan(&status.OwnerID, &status.AcquiredAt, &status.ExpiresAt, &status.ProcessID); err != nil {
		return nil, fmt.Errorf("sqlitestore: reading lock status in %q: %w", table, err)
	}
	status.Held = status.OwnerID != ""
	return &status, nil
}
