package migrate

import (
	"context"
	"fmt"
	"sort"
)

// runDown reverses every migrated script with timestamp > target, in
// descending order, per spec.md §4.1/§8. Unlike migrate-up, a down-to
// failure does not engage the Rollback Coordinator: down-to already is
// the rollback operation, and its own fail-fast rule simply stops at the
// first script that cannot be undone, leaving a deterministic partial
// result for the operator to inspect.
func (o *Orchestrator) runDown(ctx context.Context, scan *ScanResult, target int64, ledgerSvc *LedgerService, dispatcher *Dispatcher, result *MigrationResult) *MigrationResult {
	toReverse := make([]*MigrationScript, 0, len(scan.Migrated))
	for _, s := range scan.Migrated {
		if s.Timestamp > target {
			toReverse = append(toReverse, s)
		}
	}
	sort.Slice(toReverse, func(i, j int) bool { return toReverse[i].Timestamp > toReverse[j].Timestamp })

	result.addHookErrs(dispatcher.Start(ctx, len(scan.All), len(toReverse)))

	if o.cfg.DryRun {
		o.log.Log(LogDryRun{WouldExecute: len(toReverse)})
		result.State = StateEndOK
		result.addHookErrs(dispatcher.Complete(ctx, result))
		return result
	}

	result.State = StateExecute
	executor := NewExecutor(o.db, ledgerSvc, o.cfg.Transaction, o.handler, o.log)
	executed := make([]*MigrationInfo, 0, len(toReverse))
	for _, s := range toReverse {
		result.addHookErrs(dispatcher.BeforeMigrate(ctx, s))
		o.log.Log(LogScript{Script: s, Direction: "down"})
		downResult, err := executor.RunDown(ctx, o.loaders, s)
		if err != nil {
			wrapped := fmt.Errorf("migrate: down-to: undoing %q: %w", s.Name, err)
			result.addErr(wrapped)
			result.addHookErrs(dispatcher.MigrationError(ctx, s, wrapped))
			result.addHookErrs(dispatcher.Error(ctx, wrapped))
			result.State = StateEndFail
			result.addHookErrs(dispatcher.Complete(ctx, result))
			return result
		}
		if err := ledgerSvc.Remove(ctx, s.Timestamp); err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			result.addHookErrs(dispatcher.Complete(ctx, result))
			return result
		}
		info := &MigrationInfo{Timestamp: s.Timestamp, Name: s.Name, Result: downResult}
		executed = append(executed, info)
		result.addHookErrs(dispatcher.AfterMigrate(ctx, s, info))
		o.log.Log(LogScript{Script: s, Direction: "down", Done: true})
	}
	result.Executed = executed
	result.State = StateEndOK
	result.addHookErrs(dispatcher.Complete(ctx, result))
	return result
}
