package migrate

import (
	"context"
	"fmt"
	"time"
)

// Transactor is optionally implemented by a DB handle that can wrap
// script execution in a transaction. A DB handle that doesn't implement
// it can only be used with TransactionMode NONE.
type Transactor interface {
	BeginTx(ctx context.Context, isolation Isolation) (TxDB, error)
}

// TxDB is the DB handle scripts see while a transaction is open.
type TxDB interface {
	DB
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Executor runs a single pending script's Up (or a previously-executed
// script's Down) under the configured TransactionConfig, and records
// timing and result. It is the spec.md §4.10 collaborator.
type Executor struct {
	db      DB
	ledger  *LedgerService
	cfg     TransactionConfig
	handler any
	log     Logger
	now     func() time.Time
}

// NewExecutor builds an Executor.
func NewExecutor(db DB, ledger *LedgerService, cfg TransactionConfig, handler any, log Logger) *Executor {
	if log == nil {
		log = NopLogger{}
	}
	return &Executor{db: db, ledger: ledger, cfg: cfg, handler: handler, log: log, now: time.Now}
}

// CheckConnection enforces the Executor precondition of spec.md §4.10.
func (e *Executor) CheckConnection(ctx context.Context) error {
	ok, err := e.db.CheckConnection(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v; cannot proceed with migration operations; verify connection settings", ErrConnectionCheckFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w; cannot proceed with migration operations; verify connection settings", ErrConnectionCheckFailed)
	}
	return nil
}

// RunOne loads and executes a single script's Up under the configured
// transaction policy, and (for TxNone/TxPerMigration) saves the ledger
// entry as part of the same logical step. It does not itself implement
// the batch-level fail-fast rule; callers decide whether to keep going
// after an error.
func (e *Executor) RunOne(ctx context.Context, loaders *LoaderRegistry, script *MigrationScript) (*MigrationInfo, error) {
	runnable, err := loaders.Load(script)
	if err != nil {
		return nil, err
	}
	info := &MigrationInfo{
		Timestamp:   script.Timestamp,
		Name:        script.Name,
		StartedAt:   e.now().UnixMilli(),
		ContentHash: script.ContentHash,
	}
	rc := RunContext{Ctx: ctx, DB: e.db, Info: info, Handler: e.handler}

	switch e.cfg.Mode {
	case TxNone:
		result, err := runnable.Up(rc)
		info.FinishedAt = e.now().UnixMilli()
		if err != nil {
			return info, fmt.Errorf("migrate: executing %q: %w", script.Name, err)
		}
		info.Result = result
		if e.ledger != nil {
			if err := e.ledger.Save(ctx, *info); err != nil {
				return info, err
			}
		}
		return info, nil
	case TxPerMigration:
		return e.runInOwnTx(ctx, rc, runnable, script, info)
	case TxPerBatch:
		// RunBatch runs TxPerBatch batches itself inside one shared
		// transaction; here RunOne just runs Up on the plain handle and
		// leaves the ledger write to the caller.
		result, err := runnable.Up(rc)
		info.FinishedAt = e.now().UnixMilli()
		if err != nil {
			return info, fmt.Errorf("migrate: executing %q: %w", script.Name, err)
		}
		info.Result = result
		return info, nil
	default:
		return nil, fmt.Errorf("migrate: unknown transaction mode %q", e.cfg.Mode)
	}
}

func (e *Executor) runInOwnTx(ctx context.Context, rc RunContext, runnable Runnable, script *MigrationScript, info *MigrationInfo) (*MigrationInfo, error) {
	txr, ok := e.db.(Transactor)
	if !ok {
		return nil, fmt.Errorf("migrate: transaction mode %q requires a Transactor DB handle", e.cfg.Mode)
	}
	tx, err := txr.BeginTx(ctx, e.cfg.Isolation)
	if err != nil {
		return nil, fmt.Errorf("migrate: beginning transaction for %q: %w", script.Name, err)
	}
	rc.DB = tx
	result, runErr := runnable.Up(rc)
	info.FinishedAt = e.now().UnixMilli()
	if runErr != nil {
		_ = tx.Rollback(ctx)
		return info, fmt.Errorf("migrate: executing %q: %w", script.Name, runErr)
	}
	info.Result = result
	if e.ledger != nil {
		if err := e.ledger.Save(ctx, *info); err != nil {
			_ = tx.Rollback(ctx)
			return info, err
		}
	}
	if err := e.commitWithRetry(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return info, fmt.Errorf("migrate: committing %q: %w", script.Name, err)
	}
	return info, nil
}

func (e *Executor) commitWithRetry(ctx context.Context, tx TxDB) error {
	var lastErr error
	delay := e.cfg.RetryDelay
	for attempt := 0; attempt <= e.cfg.Retries; attempt++ {
		if err := tx.Commit(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < e.cfg.Retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			if e.cfg.RetryBackoff {
				delay *= 2
			}
		}
	}
	return lastErr
}

// RunBatch executes pending scripts strictly in ascending order,
// stopping at the first failure (fail-fast, spec.md §4.10/§8 property 7).
// Under TxPerBatch, all scripts share one transaction, committed once at
// the very end; under TxNone/TxPerMigration, RunOne handles each script's
// own envelope.
func (e *Executor) RunBatch(ctx context.Context, loaders *LoaderRegistry, pending []*MigrationScript, dispatcher *Dispatcher) ([]*MigrationInfo, []error, error) {
	if e.cfg.Mode != TxPerBatch {
		return e.runBatchIndependent(ctx, loaders, pending, dispatcher)
	}
	return e.runBatchShared(ctx, loaders, pending, dispatcher)
}

func (e *Executor) runBatchIndependent(ctx context.Context, loaders *LoaderRegistry, pending []*MigrationScript, dispatcher *Dispatcher) ([]*MigrationInfo, []error, error) {
	executed := make([]*MigrationInfo, 0, len(pending))
	var hookErrs []error
	for _, s := range pending {
		hookErrs = append(hookErrs, dispatcher.BeforeMigrate(ctx, s)...)
		e.log.Log(LogScript{Script: s, Direction: "up"})
		info, err := e.RunOne(ctx, loaders, s)
		if info != nil {
			info.Name = s.Name
		}
		if err != nil {
			hookErrs = append(hookErrs, dispatcher.MigrationError(ctx, s, err)...)
			return executed, hookErrs, err
		}
		executed = append(executed, info)
		hookErrs = append(hookErrs, dispatcher.AfterMigrate(ctx, s, info)...)
		e.log.Log(LogScript{Script: s, Direction: "up", Done: true})
	}
	return executed, hookErrs, nil
}

func (e *Executor) runBatchShared(ctx context.Context, loaders *LoaderRegistry, pending []*MigrationScript, dispatcher *Dispatcher) ([]*MigrationInfo, []error, error) {
	txr, ok := e.db.(Transactor)
	if !ok {
		return nil, nil, fmt.Errorf("migrate: transaction mode %q requires a Transactor DB handle", e.cfg.Mode)
	}
	tx, err := txr.BeginTx(ctx, e.cfg.Isolation)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: beginning batch transaction: %w", err)
	}
	executed := make([]*MigrationInfo, 0, len(pending))
	var hookErrs []error
	for _, s := range pending {
		hookErrs = append(hookErrs, dispatcher.BeforeMigrate(ctx, s)...)
		e.log.Log(LogScript{Script: s, Direction: "up"})
		runnable, err := loaders.Load(s)
		if err != nil {
			_ = tx.Rollback(ctx)
			hookErrs = append(hookErrs, dispatcher.MigrationError(ctx, s, err)...)
			return executed, hookErrs, err
		}
		info := &MigrationInfo{Timestamp: s.Timestamp, Name: s.Name, StartedAt: e.now().UnixMilli(), ContentHash: s.ContentHash}
		result, runErr := runnable.Up(RunContext{Ctx: ctx, DB: tx, Info: info, Handler: e.handler})
		info.FinishedAt = e.now().UnixMilli()
		if runErr != nil {
			_ = tx.Rollback(ctx)
			err := fmt.Errorf("migrate: executing %q: %w", s.Name, runErr)
			hookErrs = append(hookErrs, dispatcher.MigrationError(ctx, s, err)...)
			return executed, hookErrs, err
		}
		info.Result = result
		if e.ledger != nil {
			if err := e.ledger.Save(ctx, *info); err != nil {
				_ = tx.Rollback(ctx)
				return executed, hookErrs, err
			}
		}
		executed = append(executed, info)
		hookErrs = append(hookErrs, dispatcher.AfterMigrate(ctx, s, info)...)
		e.log.Log(LogScript{Script: s, Direction: "up", Done: true})
	}
	if err := e.commitWithRetry(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return executed, hookErrs, fmt.Errorf("migrate: committing batch: %w", err)
	}
	return executed, hookErrs, nil
}

// RunDown executes a single previously-applied script's Down, used by
// the Rollback Coordinator and by down-to. It does not itself remove the
// ledger entry; the caller does that on success, per spec.md §4.8.
func (e *Executor) RunDown(ctx context.Context, loaders *LoaderRegistry, script *MigrationScript) (string, error) {
	runnable, err := loaders.Load(script)
	if err != nil {
		return "", err
	}
	down, ok := runnable.(DownRunnable)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingDown, script.Name)
	}
	info := &MigrationInfo{Timestamp: script.Timestamp, Name: script.Name, StartedAt: e.now().UnixMilli()}
	return down.Down(RunContext{Ctx: ctx, DB: e.db, Info: info, Handler: e.handler})
}

// HasDown reports whether the loaded runnable for script supports Down,
// without running it.
func (e *Executor) HasDown(loaders *LoaderRegistry, script *MigrationScript) bool {
	runnable, err := loaders.Load(script)
	if err != nil {
		return false
	}
	_, ok := runnable.(DownRunnable)
	return ok
}
