package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedRunnable struct {
	upErr   error
	downErr error
	noDown  bool
}

func (r *scriptedRunnable) Up(RunContext) (string, error) { return "ok", r.upErr }
func (r *scriptedRunnable) Down(RunContext) (string, error) {
	return "undone", r.downErr
}

type downlessRunnable struct{}

func (downlessRunnable) Up(RunContext) (string, error) { return "ok", nil }

func TestRollbackCoordinator_BackupStrategyRestores(t *testing.T) {
	backupDrv := newFakeBackupDriver()
	svc := NewBackupService(backupDrv, BackupConfig{}, BackupFull)
	log := NopLogger{}
	rc := &RollbackCoordinator{
		Strategy:   RollbackBackup,
		Backup:     svc,
		Dispatcher: NewDispatcher(log),
		Log:        log,
	}
	err := rc.Rollback(context.Background(), nil, nil, "backup-1")
	require.NoError(t, err)
	require.Equal(t, []string{"backup-1"}, backupDrv.restored)
}

func TestRollbackCoordinator_BackupStrategyNoBackupIsError(t *testing.T) {
	svc := NewBackupService(newFakeBackupDriver(), BackupConfig{}, BackupFull)
	rc := &RollbackCoordinator{Strategy: RollbackBackup, Backup: svc, Dispatcher: NewDispatcher(nil), Log: NopLogger{}}
	err := rc.Rollback(context.Background(), nil, nil, "")
	require.Error(t, err)
}

func TestRollbackCoordinator_DownStrategyReverseOrder(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	reg := NewLoaderRegistry(NewCodeLoader())
	ledgerDrv := newFakeLedgerDriver(
		MigrationInfo{Timestamp: 1, Name: "1_a.go"},
		MigrationInfo{Timestamp: 2, Name: "2_b.go"},
	)
	ledger := NewLedgerService(ledgerDrv, "schema_migrations")
	executor := NewExecutor(&fakeDB{healthy: true}, ledger, TransactionConfig{Mode: TxNone}, nil, NopLogger{})

	rc := &RollbackCoordinator{
		Strategy:   RollbackDown,
		Executor:   executor,
		Loaders:    reg,
		Ledger:     ledger,
		Dispatcher: NewDispatcher(nil),
		Log:        NopLogger{},
	}

	executed := []ExecutedStep{
		{Script: &MigrationScript{Timestamp: 1, Name: "1_a.go", Filepath: "1_a.go"}},
		{Script: &MigrationScript{Timestamp: 2, Name: "2_b.go", Filepath: "2_b.go"}},
	}
	failed := &MigrationScript{Timestamp: 3, Name: "3_c.go", Filepath: "3_c.go"}
	var order []int64
	ResetRegistry()
	Register(1, &orderTrackingRunnable{ts: 1, order: &order})
	Register(2, &orderTrackingRunnable{ts: 2, order: &order})
	Register(3, &downlessRunnable{}) // no Down: failed-script Down-missing is only a warning

	err := rc.Rollback(context.Background(), failed, executed, "")
	require.NoError(t, err)
	require.Equal(t, []int64{2, 1}, order)

	rows, err := ledger.GetAllExecuted(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRollbackCoordinator_DownStrategyMissingDownOnPreviouslyExecutedIsHardError(t *testing.T) {
	ResetRegistry()
	Register(1, downlessRunnable{})
	defer ResetRegistry()

	reg := NewLoaderRegistry(NewCodeLoader())
	ledgerDrv := newFakeLedgerDriver(MigrationInfo{Timestamp: 1, Name: "1_a.go"})
	ledger := NewLedgerService(ledgerDrv, "schema_migrations")
	executor := NewExecutor(&fakeDB{healthy: true}, ledger, TransactionConfig{Mode: TxNone}, nil, NopLogger{})

	rc := &RollbackCoordinator{
		Strategy:   RollbackDown,
		Executor:   executor,
		Loaders:    reg,
		Ledger:     ledger,
		Dispatcher: NewDispatcher(nil),
		Log:        NopLogger{},
	}
	executed := []ExecutedStep{{Script: &MigrationScript{Timestamp: 1, Name: "1_a.go", Filepath: "1_a.go"}}}

	err := rc.Rollback(context.Background(), nil, executed, "")
	require.ErrorIs(t, err, ErrMissingDown)
}

func TestRollbackCoordinator_DownStrategyExecutionFailureOnPreviouslyExecutedIsNotMissingDown(t *testing.T) {
	ResetRegistry()
	downErr := errors.New("down script: syntax error")
	Register(1, &scriptedRunnable{downErr: downErr})
	defer ResetRegistry()

	reg := NewLoaderRegistry(NewCodeLoader())
	ledgerDrv := newFakeLedgerDriver(MigrationInfo{Timestamp: 1, Name: "1_a.go"})
	ledger := NewLedgerService(ledgerDrv, "schema_migrations")
	executor := NewExecutor(&fakeDB{healthy: true}, ledger, TransactionConfig{Mode: TxNone}, nil, NopLogger{})

	rc := &RollbackCoordinator{
		Strategy:   RollbackDown,
		Executor:   executor,
		Loaders:    reg,
		Ledger:     ledger,
		Dispatcher: NewDispatcher(nil),
		Log:        NopLogger{},
	}
	executed := []ExecutedStep{{Script: &MigrationScript{Timestamp: 1, Name: "1_a.go", Filepath: "1_a.go"}}}

	err := rc.Rollback(context.Background(), nil, executed, "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMissingDown, "a genuine Down execution failure must not be mislabeled as a missing Down migration")
	require.ErrorIs(t, err, downErr)
}

func TestRollbackCoordinator_BothFallsBackToBackupWhenDownFails(t *testing.T) {
	ResetRegistry()
	Register(1, downlessRunnable{})
	defer ResetRegistry()

	reg := NewLoaderRegistry(NewCodeLoader())
	ledgerDrv := newFakeLedgerDriver(MigrationInfo{Timestamp: 1, Name: "1_a.go"})
	ledger := NewLedgerService(ledgerDrv, "schema_migrations")
	executor := NewExecutor(&fakeDB{healthy: true}, ledger, TransactionConfig{Mode: TxNone}, nil, NopLogger{})
	backupDrv := newFakeBackupDriver()
	backupSvc := NewBackupService(backupDrv, BackupConfig{}, BackupFull)

	rc := &RollbackCoordinator{
		Strategy:   RollbackBoth,
		Executor:   executor,
		Loaders:    reg,
		Ledger:     ledger,
		Backup:     backupSvc,
		Dispatcher: NewDispatcher(nil),
		Log:        NopLogger{},
	}
	executed := []ExecutedStep{{Script: &MigrationScript{Timestamp: 1, Name: "1_a.go", Filepath: "1_a.go"}}}

	err := rc.Rollback(context.Background(), nil, executed, "backup-1")
	require.NoError(t, err)
	require.Equal(t, []string{"backup-1"}, backupDrv.restored)
}

func TestRollbackCoordinator_NoneIsNoop(t *testing.T) {
	rc := &RollbackCoordinator{Strategy: RollbackNone, Dispatcher: NewDispatcher(nil), Log: NopLogger{}}
	require.NoError(t, rc.Rollback(context.Background(), nil, nil, ""))
}
