package migrate

import (
	"context"
	"errors"
	"fmt"
)

// RollbackCoordinator implements the backup-restore / reverse-down /
// both strategies of spec.md §4.8, in the prescribed order.
type RollbackCoordinator struct {
	Strategy   RollbackStrategy
	Executor   *Executor
	Loaders    *LoaderRegistry
	Ledger     *LedgerService
	Backup     *BackupService
	Dispatcher *Dispatcher
	Log        Logger
}

// ExecutedStep pairs a previously-executed script with its ledger entry,
// in the order scripts were actually run.
type ExecutedStep struct {
	Script *MigrationScript
	Info   *MigrationInfo
}

// Rollback reacts to a failure of `failed` during execution. executed is
// every script that completed successfully before it, in run order.
// backupPath is the path returned by an earlier BackupService.Create
// call, or "" if none was made.
func (c *RollbackCoordinator) Rollback(ctx context.Context, failed *MigrationScript, executed []ExecutedStep, backupPath string) error {
	if c.Log == nil {
		c.Log = NopLogger{}
	}
	switch c.Strategy {
	case RollbackNone:
		return nil
	case RollbackBackup:
		return c.rollbackBackup(ctx, backupPath)
	case RollbackDown:
		return c.rollbackDown(ctx, failed, executed)
	case RollbackBoth:
		if err := c.rollbackDown(ctx, failed, executed); err != nil {
			c.Log.Log(LogWarn{Message: "down rollback failed, falling back to backup restore: " + err.Error()})
			return c.rollbackBackup(ctx, backupPath)
		}
		return nil
	default:
		return fmt.Errorf("migrate: unknown rollback strategy %q", c.Strategy)
	}
}

func (c *RollbackCoordinator) rollbackBackup(ctx context.Context, backupPath string) error {
	if backupPath == "" || !c.Backup.MayRestore() {
		return errors.New("migrate: rollback: no backup available to restore")
	}
	c.Dispatcher.BeforeRestore(ctx, backupPath)
	c.Log.Log(LogBackup{Path: backupPath, Restoring: true})
	if err := c.Backup.Restore(ctx, backupPath); err != nil {
		return fmt.Errorf("migrate: rollback: restoring backup: %w", err)
	}
	c.Dispatcher.AfterRestore(ctx, backupPath)
	return nil
}

// rollbackDown runs the failed script's Down first (to undo its partial
// effects; a missing Down there is only a warning), then every
// previously-executed script's Down in reverse insertion order (a
// missing Down there is a hard error, since skipping it leaves
// inconsistent state). Each successful Down removes the ledger entry, in
// the same reverse order.
func (c *RollbackCoordinator) rollbackDown(ctx context.Context, failed *MigrationScript, executed []ExecutedStep) error {
	c.Log.Log(LogRollback{Strategy: RollbackDown})
	if failed != nil {
		if _, err := c.Executor.RunDown(ctx, c.Loaders, failed); err != nil {
			if errors.Is(err, ErrMissingDown) {
				c.Log.Log(LogWarn{Message: fmt.Sprintf("no down migration for failed script %q, skipping its cleanup", failed.Name)})
			} else {
				return fmt.Errorf("migrate: rollback: undoing failed script %q: %w", failed.Name, err)
			}
		}
	}
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if _, err := c.Executor.RunDown(ctx, c.Loaders, step.Script); err != nil {
			if errors.Is(err, ErrMissingDown) {
				return fmt.Errorf("migrate: rollback: %w: %q", ErrMissingDown, step.Script.Name)
			}
			return fmt.Errorf("migrate: rollback: undoing previously-executed script %q failed: %w", step.Script.Name, err)
		}
		if err := c.Ledger.Remove(ctx, step.Script.Timestamp); err != nil {
			return fmt.Errorf("migrate: rollback: removing ledger entry for %q: %w", step.Script.Name, err)
		}
	}
	c.Log.Log(LogRollback{Strategy: RollbackDown, Done: true})
	return nil
}
