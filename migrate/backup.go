package migrate

import "context"

// BackupDeleter is optionally implemented by a BackupDriver that can
// clean up after itself. spec.md §4.7 says backups are "iff configured"
// deleted on success; that capability isn't part of the minimal IBackup
// contract (backup/restore only), so it's modeled as an optional
// extension instead of a required method.
type BackupDeleter interface {
	DeleteBackup(ctx context.Context, path string) error
}

// BackupService is the thin wrapper over BackupDriver described in
// spec.md §4.7. It knows about BackupMode but not about rollback
// strategy; the Orchestrator decides whether a backup is needed for the
// current strategy and calls Create at most once per migrate-up call.
type BackupService struct {
	driver BackupDriver
	cfg    BackupConfig
	mode   BackupMode
}

// NewBackupService builds a BackupService.
func NewBackupService(driver BackupDriver, cfg BackupConfig, mode BackupMode) *BackupService {
	return &BackupService{driver: driver, cfg: cfg, mode: mode}
}

// ShouldCreate reports whether this call should create a fresh backup,
// per the backup-mode table in spec.md §4.7.
func (b *BackupService) ShouldCreate(strategy RollbackStrategy, dryRun bool) bool {
	if dryRun {
		return false
	}
	switch b.mode {
	case BackupFull, BackupCreateOnly:
		return strategy == RollbackBackup || strategy == RollbackBoth
	default:
		return false
	}
}

// MayRestore reports whether this backup mode permits a restore at all.
func (b *BackupService) MayRestore() bool {
	return b.mode == BackupFull || b.mode == BackupRestoreOnly
}

// Create produces a new backup via the driver.
func (b *BackupService) Create(ctx context.Context) (string, error) {
	return b.driver.Backup(ctx)
}

// ExistingPath resolves the pre-supplied backup for RESTORE_ONLY mode,
// returning ErrMissingExistingBackup if absent.
func (b *BackupService) ExistingPath() (string, error) {
	if b.cfg.ExistingBackupPath == "" {
		return "", ErrMissingExistingBackup
	}
	return b.cfg.ExistingBackupPath, nil
}

// Restore restores the database from the given backup path/content.
func (b *BackupService) Restore(ctx context.Context, path string) error {
	return b.driver.Restore(ctx, path)
}

// Cleanup deletes the backup at path iff cfg.DeleteBackup is set and the
// driver supports deletion.
func (b *BackupService) Cleanup(ctx context.Context, path string) error {
	if !b.cfg.DeleteBackup || path == "" {
		return nil
	}
	if d, ok := b.driver.(BackupDeleter); ok {
		return d.DeleteBackup(ctx, path)
	}
	return nil
}
