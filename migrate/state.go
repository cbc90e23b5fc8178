package migrate

// State enumerates the Orchestrator's state machine steps (spec.md §4.1).
type State int

const (
	StateStart State = iota
	StateCheckConnection
	StateAcquireLock
	StateInitLedger
	StateScan
	StateValidate
	StateBackup
	StateExecute
	StateRollback
	StateCleanupBackup
	StateReleaseLock
	StateEndOK
	StateEndFail
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateCheckConnection:
		return "CHECK_CONNECTION"
	case StateAcquireLock:
		return "ACQUIRE_LOCK"
	case StateInitLedger:
		return "INIT_LEDGER"
	case StateScan:
		return "SCAN"
	case StateValidate:
		return "VALIDATE"
	case StateBackup:
		return "BACKUP"
	case StateExecute:
		return "EXECUTE"
	case StateRollback:
		return "ROLLBACK"
	case StateCleanupBackup:
		return "CLEANUP_BACKUP"
	case StateReleaseLock:
		return "RELEASE_LOCK"
	case StateEndOK:
		return "END_OK"
	case StateEndFail:
		return "END_FAIL"
	default:
		return "UNKNOWN"
	}
}
