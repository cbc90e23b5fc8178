package migrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// LockService is the distributed-lock collaborator described in
// spec.md §4.5: it generates per-call owner ids, drives the acquire
// retry policy, verifies ownership, and releases, delegating storage to
// a LockingDriver.
type LockService struct {
	driver LockingDriver
	cfg    LockingConfig
}

// NewLockService validates cfg and builds a LockService over driver.
func NewLockService(driver LockingDriver, cfg LockingConfig) (*LockService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LockService{driver: driver, cfg: cfg}, nil
}

// GenerateOwnerID returns a fresh "hostname-pid-uuid" id. Two calls from
// the same process always produce distinct ids because of the uuid
// component.
func GenerateOwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString())
}

// Init ensures the lock storage exists and is reachable.
func (s *LockService) Init(ctx context.Context) error {
	if err := s.driver.InitLockStorage(ctx, s.cfg.TableName); err != nil {
		return fmt.Errorf("migrate: lock: init storage: %w", err)
	}
	return s.driver.EnsureLockStorageAccessible(ctx, s.cfg.TableName)
}

// Acquire implements the retry policy of §4.5: it first releases an
// expired lock if any, then attempts acquisition up to
// 1+cfg.RetryAttempts times with a constant cfg.RetryDelay between
// attempts (no mandated exponential backoff).
func (s *LockService) Acquire(ctx context.Context, ownerID string) error {
	if _, err := s.driver.CheckAndReleaseExpiredLock(ctx, s.cfg.TableName); err != nil {
		return fmt.Errorf("migrate: lock: checking expired lock: %w", err)
	}
	attempts := 1 + s.cfg.RetryAttempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ok, err := s.driver.AcquireLock(ctx, s.cfg.TableName, ownerID, int64(s.cfg.Timeout.Seconds()))
		if err != nil {
			lastErr = err
		} else if ok {
			return nil
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.RetryDelay):
			}
		}
	}
	return s.acquisitionError(ctx, attempts, lastErr)
}

func (s *LockService) acquisitionError(ctx context.Context, attempts int, cause error) error {
	msg := fmt.Sprintf("%s after %d attempt(s)", ErrLockAcquisition.Error(), attempts)
	if status, err := s.driver.GetLockStatus(ctx, s.cfg.TableName); err == nil && status != nil && status.Held {
		msg += fmt.Sprintf("; currently held by: %s", status.OwnerID)
		if status.ExpiresAt > 0 {
			msg += fmt.Sprintf(", expires at %s", time.UnixMilli(status.ExpiresAt).Format(time.RFC3339))
		}
	}
	msg += "; run `msr lock release --force` to recover if the holder is stale"
	if cause != nil {
		return fmt.Errorf("%s: %w", msg, cause)
	}
	return fmt.Errorf("%s", msg)
}

// VerifyOwnership is called once after a successful Acquire.
func (s *LockService) VerifyOwnership(ctx context.Context, ownerID string) error {
	ok, err := s.driver.VerifyLockOwnership(ctx, s.cfg.TableName, ownerID)
	if err != nil {
		return fmt.Errorf("migrate: lock: verifying ownership: %w", err)
	}
	if !ok {
		return ErrLockOwnership
	}
	return nil
}

// Release releases the lock. Callers are expected to log and swallow
// the error rather than let it mask the primary result, per spec.md §4.5.
func (s *LockService) Release(ctx context.Context, ownerID string) error {
	return s.driver.ReleaseLock(ctx, s.cfg.TableName, ownerID)
}

// ForceRelease unconditionally clears the lock row, used by the operator
// recovery command referenced in acquisition error messages.
func (s *LockService) ForceRelease(ctx context.Context) error {
	return s.driver.ForceReleaseLock(ctx, s.cfg.TableName)
}

// Status returns the current lock row snapshot, if any.
func (s *LockService) Status(ctx context.Context) (*LockStatus, error) {
	return s.driver.GetLockStatus(ctx, s.cfg.TableName)
}
