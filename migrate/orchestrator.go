package migrate

import (
	"context"
	"fmt"
	"sort"
)

// Orchestrator drives the top-level workflows of spec.md §4.1: migrate-up,
// down-to, validate, and list. It holds no mutable state across calls;
// every call reads a fresh lock owner id and a fresh scan.
type Orchestrator struct {
	cfg          Configuration
	db           DB
	loaders      *LoaderRegistry
	ledgerDriver SchemaVersionDriver
	lockDriver   LockingDriver
	backupDriver BackupDriver
	hooks        []Hooks
	log          Logger
	handler      any
}

// Option configures an Orchestrator using functional arguments, in the
// style of the teacher's PlannerOption/ExecutorOption.
type Option func(*Orchestrator)

// WithHooks appends hook bundles, dispatched in the order given across
// all calls made to the Orchestrator afterwards.
func WithHooks(bundles ...Hooks) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, bundles...) }
}

// WithOrchestratorLogger sets the Logger every collaborator logs structured events to.
func WithOrchestratorLogger(log Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithHandler sets the opaque handler value forwarded to every script.
func WithHandler(h any) Option {
	return func(o *Orchestrator) { o.handler = h }
}

// NewOrchestrator builds an Orchestrator over its external collaborators.
func NewOrchestrator(db DB, loaders *LoaderRegistry, ledgerDriver SchemaVersionDriver, lockDriver LockingDriver, backupDriver BackupDriver, cfg Configuration, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, db: db, loaders: loaders, ledgerDriver: ledgerDriver, lockDriver: lockDriver, backupDriver: backupDriver, log: NopLogger{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) dispatcher() *Dispatcher {
	return NewDispatcher(o.log, o.hooks...)
}

// MigrateUp advances to the latest pending script, or up to and
// including target if given, following the state machine of spec.md §4.1.
func (o *Orchestrator) MigrateUp(ctx context.Context, target *int64) *MigrationResult {
	return o.run(ctx, opUp, target)
}

// DownTo reverses every applied migration with timestamp > target, in
// descending order.
func (o *Orchestrator) DownTo(ctx context.Context, target int64) *MigrationResult {
	return o.run(ctx, opDown, &target)
}

// Validate runs the Validator without mutating any state. It still
// performs the connection check and scan, but never takes the lock
// (concurrent read-only calls don't need to serialize, per spec.md §5).
func (o *Orchestrator) Validate(ctx context.Context) *MigrationResult {
	result := &MigrationResult{Success: true, State: StateCheckConnection}
	if err := o.checkConnection(ctx); err != nil {
		result.addErr(err)
		result.State = StateEndFail
		return result
	}
	result.State = StateInitLedger
	ledgerSvc := NewLedgerService(o.ledgerDriver, o.cfg.TableName)
	if err := ledgerSvc.Init(ctx); err != nil {
		result.addErr(err)
		result.State = StateEndFail
		return result
	}
	ledger, err := ledgerSvc.GetAllExecuted(ctx)
	if err != nil {
		result.addErr(err)
		result.State = StateEndFail
		return result
	}
	result.State = StateScan
	scanner := NewScanner(o.cfg, o.loaders)
	scan, warnings, err := scanner.Scan(ledger)
	if err != nil {
		result.addErr(err)
		result.State = StateEndFail
		return result
	}
	for _, w := range warnings {
		o.log.Log(LogWarn{Message: w})
	}
	result.State = StateValidate
	validator := NewValidator(o.loaders, o.cfg.StrictValidation)
	if err := validator.PreExecution(scan, o.cfg.Transaction.Mode, warnings); err != nil {
		result.addErr(err)
		result.State = StateEndFail
		return result
	}
	if o.cfg.ValidateMigratedFiles {
		ledgerMap := make(map[int64]MigrationInfo, len(ledger))
		for _, l := range ledger {
			ledgerMap[l.Timestamp] = l
		}
		if err := validator.Integrity(scan, ledgerMap); err != nil {
			result.addErr(err)
			result.State = StateEndFail
			return result
		}
	}
	result.Migrated = toInfoPtrs(ledger)
	result.Ignored = scan.Ignored
	result.State = StateEndOK
	return result
}

// List reports ledger contents, up to displayLimit entries if limit<=0.
// It is side-effect-free and does not take the lock.
func (o *Orchestrator) List(ctx context.Context, limit int) (*MigrationResult, error) {
	ledgerSvc := NewLedgerService(o.ledgerDriver, o.cfg.TableName)
	rows, err := ledgerSvc.GetAllExecuted(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	if limit <= 0 {
		limit = o.cfg.DisplayLimit
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return &MigrationResult{Success: true, Migrated: toInfoPtrs(rows)}, nil
}

type op int

const (
	opUp op = iota
	opDown
)

// run implements the shared state machine for migrate-up and down-to,
// advancing result.State through the spec.md §4.1 sequence
// (StateStart -> ... -> StateEndOK/StateEndFail) as each step completes.
func (o *Orchestrator) run(ctx context.Context, kind op, target *int64) *MigrationResult {
	result := &MigrationResult{Success: true, State: StateStart}
	defer func() { o.log.Log(LogDone{Success: result.Success}) }()
	dispatcher := o.dispatcher()

	result.State = StateCheckConnection
	if err := o.checkConnection(ctx); err != nil {
		result.addErr(err)
		result.addHookErrs(dispatcher.Error(ctx, err))
		result.State = StateEndFail
		return result
	}

	var (
		lockSvc *LockService
		ownerID string
	)
	if o.cfg.Locking.Enabled {
		result.State = StateAcquireLock
		var err error
		lockSvc, err = NewLockService(o.lockDriver, o.cfg.Locking)
		if err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			return result
		}
		if err := lockSvc.Init(ctx); err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			return result
		}
		ownerID = GenerateOwnerID()
		if err := lockSvc.Acquire(ctx, ownerID); err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			return result
		}
		if err := lockSvc.VerifyOwnership(ctx, ownerID); err != nil {
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			_ = lockSvc.Release(ctx, ownerID)
			result.State = StateEndFail
			return result
		}
		defer func() {
			state := result.State
			result.State = StateReleaseLock
			if err := lockSvc.Release(ctx, ownerID); err != nil {
				o.log.Log(LogWarn{Message: "lock release failed: " + err.Error()})
			}
			result.State = state
		}()
		o.log.Log(LogLockAcquired{OwnerID: ownerID})
	}

	result.State = StateInitLedger
	ledgerSvc := NewLedgerService(o.ledgerDriver, o.cfg.TableName)
	if err := ledgerSvc.Init(ctx); err != nil {
		result.addErr(err)
		result.addHookErrs(dispatcher.Error(ctx, err))
		result.State = StateEndFail
		return result
	}

	ledger, err := ledgerSvc.GetAllExecuted(ctx)
	if err != nil {
		result.addErr(err)
		result.addHookErrs(dispatcher.Error(ctx, err))
		result.State = StateEndFail
		return result
	}

	result.State = StateScan
	scanner := NewScanner(o.cfg, o.loaders)
	scan, warnings, err := scanner.Scan(ledger)
	if err != nil {
		result.addErr(err)
		result.addHookErrs(dispatcher.Error(ctx, err))
		result.State = StateEndFail
		return result
	}
	for _, w := range warnings {
		o.log.Log(LogWarn{Message: w})
	}
	o.log.Log(LogScan{Migrated: len(scan.Migrated), Pending: len(scan.Pending), Ignored: len(scan.Ignored)})
	result.Ignored = scan.Ignored
	result.Migrated = toInfoPtrs(ledger)

	if o.cfg.ValidateBeforeRun {
		result.State = StateValidate
		validator := NewValidator(o.loaders, o.cfg.StrictValidation)
		if err := validator.PreExecution(scan, o.cfg.Transaction.Mode, warnings); err != nil {
			// Fail-fast ordering rule: pre-flight validator failures abort
			// before BACKUP/EXECUTE and never engage rollback.
			result.addErr(err)
			result.addHookErrs(dispatcher.Error(ctx, err))
			result.State = StateEndFail
			return result
		}
		if o.cfg.ValidateMigratedFiles {
			ledgerMap := make(map[int64]MigrationInfo, len(ledger))
			for _, l := range ledger {
				ledgerMap[l.Timestamp] = l
			}
			if err := validator.Integrity(scan, ledgerMap); err != nil {
				result.addErr(err)
				result.addHookErrs(dispatcher.Error(ctx, err))
				result.State = StateEndFail
				return result
			}
		}
	}

	switch kind {
	case opUp:
		return o.runUp(ctx, scan, target, ledgerSvc, dispatcher, result)
	case opDown:
		return o.runDown(ctx, scan, *target, ledgerSvc, dispatcher, result)
	default:
		result.addErr(fmt.Errorf("migrate: unknown operation"))
		result.State = StateEndFail
		return result
	}
}

func (o *Orchestrator) checkConnection(ctx context.Context) error {
	ok, err := o.db.CheckConnection(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v; cannot proceed with migration operations; verify connection settings", ErrConnectionCheckFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w; cannot proceed with migration operations; verify connection settings", ErrConnectionCheckFailed)
	}
	return nil
}

func toInfoPtrs(in []MigrationInfo) []*MigrationInfo {
	out := make([]*MigrationInfo, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}
