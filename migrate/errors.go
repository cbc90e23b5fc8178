package migrate

import "errors"

// Sentinel errors returned by the core, in the spirit of the teacher's
// package-level Err* variables (sql/migrate: prefixed there, unprefixed
// here since this package only has one domain to speak for).
var (
	// ErrDuplicateTimestamp is returned by the Scanner when two discovered
	// files share a timestamp.
	ErrDuplicateTimestamp = errors.New("migrate: duplicate migration timestamp")
	// ErrConnectionCheckFailed is returned when DB.CheckConnection reports false.
	ErrConnectionCheckFailed = errors.New("migrate: database connection check failed")
	// ErrLockAcquisition is returned when the lock could not be obtained
	// after all configured retry attempts.
	ErrLockAcquisition = errors.New("migrate: failed to acquire migration lock")
	// ErrLockOwnership is returned when VerifyLockOwnership returns false
	// right after a successful acquisition.
	ErrLockOwnership = errors.New("migrate: lock ownership verification failed")
	// ErrLedgerInit is returned when the ledger table cannot be created or validated.
	ErrLedgerInit = errors.New("migrate: schema version table is invalid")
	// ErrHybridTransactional is returned when a pending set spans more than
	// one loader while the transaction mode is not NONE.
	ErrHybridTransactional = errors.New("migrate: hybrid migrations detected")
	// ErrOrdering is returned when a pending, non-ignored file has a
	// timestamp at or below the ledger high-water mark.
	ErrOrdering = errors.New("migrate: migration ordering violation")
	// ErrIntegrityMismatch is returned when a migrated file's recomputed
	// hash no longer matches the ledger's recorded hash.
	ErrIntegrityMismatch = errors.New("migrate: file integrity check failed")
	// ErrMissingExistingBackup is returned by RESTORE_ONLY backup mode
	// when no ExistingBackupPath was supplied.
	ErrMissingExistingBackup = errors.New("migrate: restore-only backup mode requires an existing backup path")
	// ErrMissingDown is returned when the Rollback Coordinator needs a
	// Down for a previously-executed script that doesn't have one.
	ErrMissingDown = errors.New("migrate: previously executed script has no down migration")
	// ErrNoRunnable is returned by a Loader when a file resolves to zero
	// or multiple runnable instances instead of exactly one.
	ErrNoRunnable = errors.New("migrate: file must resolve to exactly one runnable")
)
