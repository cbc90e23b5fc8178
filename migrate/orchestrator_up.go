package migrate

import "context"

func (o *Orchestrator) runUp(ctx context.Context, scan *ScanResult, target *int64, ledgerSvc *LedgerService, dispatcher *Dispatcher, result *MigrationResult) *MigrationResult {
	pending := scan.Pending
	if target != nil {
		filtered := make([]*MigrationScript, 0, len(pending))
		for _, s := range pending {
			if s.Timestamp <= *target {
				filtered = append(filtered, s)
			}
		}
		pending = filtered
	}
	for _, s := range pending {
		if s.ContentHash == "" {
			if h, err := HashFile(s.Filepath); err == nil {
				s.ContentHash = h
			}
		}
	}

	result.addHookErrs(dispatcher.Start(ctx, len(scan.All), len(pending)))

	if o.cfg.DryRun {
		o.log.Log(LogDryRun{WouldExecute: len(pending), WouldIgnore: len(scan.Ignored)})
		result.Executed = nil
		result.State = StateEndOK
		result.addHookErrs(dispatcher.Complete(ctx, result))
		return result
	}

	backupSvc := NewBackupService(o.backupDriver, o.cfg.Backup, o.cfg.BackupMode)
	var backupPathForRollback string
	if o.cfg.BackupMode == BackupRestoreOnly {
		path, err := backupSvc.ExistingPath()
		if err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			return result
		}
		backupPathForRollback = path
	}

	executor := NewExecutor(o.db, ledgerSvc, o.cfg.Transaction, o.handler, o.log)

	if err := o.runBeforeMigrate(ctx, executor, len(pending), dispatcher); err != nil {
		result.addErr(err)
		result.addHookErrs(dispatcher.Error(ctx, err))
		result.State = StateRollback
		rc := &RollbackCoordinator{Strategy: o.cfg.RollbackStrategy, Executor: executor, Loaders: o.loaders, Ledger: ledgerSvc, Backup: backupSvc, Dispatcher: dispatcher, Log: o.log}
		if rbErr := rc.Rollback(ctx, nil, nil, backupPathForRollback); rbErr != nil {
			result.addErr(rbErr)
		}
		result.State = StateEndFail
		result.addHookErrs(dispatcher.Complete(ctx, result))
		return result
	}

	var backupPath string
	if backupSvc.ShouldCreate(o.cfg.RollbackStrategy, false) {
		result.State = StateBackup
		result.addHookErrs(dispatcher.BeforeBackup(ctx))
		path, err := backupSvc.Create(ctx)
		if err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			result.addHookErrs(dispatcher.Complete(ctx, result))
			return result
		}
		backupPath = path
		backupPathForRollback = path
		result.addHookErrs(dispatcher.AfterBackup(ctx, backupPath))
		o.log.Log(LogBackup{Path: backupPath})
	}

	result.State = StateExecute
	executed, hookErrs, execErr := executor.RunBatch(ctx, o.loaders, pending, dispatcher)
	result.Executed = executed
	scan.Executed = executed
	result.addHookErrs(hookErrs)

	if execErr != nil {
		var failed *MigrationScript
		if len(executed) < len(pending) {
			failed = pending[len(executed)]
		}
		steps := make([]ExecutedStep, len(executed))
		for i, info := range executed {
			steps[i] = ExecutedStep{Script: pending[i], Info: info}
		}
		result.addErr(execErr)
		result.addHookErrs(dispatcher.Error(ctx, execErr))
		result.State = StateRollback
		rc := &RollbackCoordinator{Strategy: o.cfg.RollbackStrategy, Executor: executor, Loaders: o.loaders, Ledger: ledgerSvc, Backup: backupSvc, Dispatcher: dispatcher, Log: o.log}
		if rbErr := rc.Rollback(ctx, failed, steps, backupPathForRollback); rbErr != nil {
			result.addErr(rbErr)
		}
		result.State = StateEndFail
		result.addHookErrs(dispatcher.Complete(ctx, result))
		return result
	}

	if backupPath != "" {
		result.State = StateCleanupBackup
		if err := backupSvc.Cleanup(ctx, backupPath); err != nil {
			o.log.Log(LogWarn{Message: "backup cleanup failed: " + err.Error()})
		}
	}
	result.State = StateEndOK
	result.addHookErrs(dispatcher.Complete(ctx, result))
	return result
}

// runBeforeMigrate executes the designated beforeMigrate script once,
// before the main loop, iff it exists in the folder and at least one
// pending migration exists. It is not itself a versioned script: it has
// no ledger entry and is not part of the scanned set.
func (o *Orchestrator) runBeforeMigrate(ctx context.Context, executor *Executor, pendingCount int, dispatcher *Dispatcher) error {
	if o.cfg.BeforeMigrateName == "" || pendingCount == 0 {
		return nil
	}
	script := findBeforeMigrate(o.cfg.Folder, o.cfg.BeforeMigrateName, o.loaders)
	if script == nil {
		return nil
	}
	runnable, err := o.loaders.Load(script)
	if err != nil {
		return err
	}
	info := &MigrationInfo{Name: script.Name}
	_, err = runnable.Up(RunContext{Ctx: ctx, DB: o.db, Info: info, Handler: o.handler})
	return err
}
