// Package filelock provides a single-host LockingDriver alternative to
// sqlitestore's table-based lock, backed by github.com/gofrs/flock. It
// suits a single-operator workstation or a single-writer deployment
// where a database round-trip for locking would be overkill.
package filelock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/go-msr/msr/migrate"
)

// Driver implements migrate.LockingDriver over an OS file lock plus a
// small sidecar JSON file recording the current owner, for status
// reporting and expiry checks (flock itself can't express a TTL).
type Driver struct {
	path string

	mu   sync.Mutex
	fl   *flock.Flock
	meta lockMeta
}

type lockMeta struct {
	OwnerID    string `json:"owner_id"`
	AcquiredAt int64  `json:"acquired_at"`
	ExpiresAt  int64  `json:"expires_at"`
	ProcessID  int    `json:"process_id"`
}

// New builds a Driver whose lock file and metadata sidecar live under
// dir, named after table (LockingConfig.TableName by convention).
func New(dir string) *Driver {
	return &Driver{path: dir}
}

func (d *Driver) lockFile(table string) string { return fmt.Sprintf("%s/%s.lock", d.path, table) }
func (d *Driver) metaFile(table string) string  { return fmt.Sprintf("%s/%s.lock.json", d.path, table) }

var _ migrate.LockingDriver = (*Driver)(nil)

// InitLockStorage ensures the lock directory exists.
func (d *Driver) InitLockStorage(_ context.Context, _ string) error {
	return os.MkdirAll(d.path, 0o755)
}

// EnsureLockStorageAccessible verifies the directory is writable by
// touching and removing a throwaway probe file.
func (d *Driver) EnsureLockStorageAccessible(_ context.Context, table string) error {
	probe := d.lockFile(table) + ".probe"
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return fmt.Errorf("filelock: %q is not writable: %w", d.path, err)
	}
	return os.Remove(probe)
}

// AcquireLock attempts a non-blocking flock acquisition and, on success,
// writes the metadata sidecar recording ownerID and its expiry.
func (d *Driver) AcquireLock(_ context.Context, table, ownerID string, timeoutSeconds int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fl := flock.New(d.lockFile(table))
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("filelock: acquiring %q: %w", table, err)
	}
	if !ok {
		return false, nil
	}
	d.fl = fl
	now := time.Now().UnixMilli()
	d.meta = lockMeta{OwnerID: ownerID, AcquiredAt: now, ExpiresAt: now + timeoutSeconds*1000, ProcessID: os.Getpid()}
	if err := d.writeMeta(table); err != nil {
		_ = fl.Unlock()
		d.fl = nil
		return false, err
	}
	return true, nil
}

// VerifyLockOwnership reports whether ownerID matches the recorded owner.
func (d *Driver) VerifyLockOwnership(_ context.Context, table, ownerID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	meta, err := d.readMeta(table)
	if err != nil {
		return false, err
	}
	return meta.OwnerID == ownerID, nil
}

// ReleaseLock unlocks and clears the sidecar iff still held by ownerID.
func (d *Driver) ReleaseLock(_ context.Context, table, ownerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	meta, err := d.readMeta(table)
	if err != nil {
		return err
	}
	if meta.OwnerID != ownerID {
		return nil
	}
	return d.unlockAndClear(table)
}

// ForceReleaseLock unconditionally unlocks and clears the sidecar.
func (d *Driver) ForceReleaseLock(_ context.Context, table string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unlockAndClear(table)
}

func (d *Driver) unlockAndClear(table string) error {
	if d.fl != nil {
		if err := d.fl.Unlock(); err != nil {
			return fmt.Errorf("filelock: unlocking %q: %w", table, err)
		}
		d.fl = nil
	}
	d.meta = lockMeta{}
	return d.writeMeta(table)
}

// CheckAndReleaseExpiredLock clears the sidecar (and, best-effort, the OS
// lock) if the recorded expiry has passed.
func (d *Driver) CheckAndReleaseExpiredLock(ctx context.Context, table string) (bool, error) {
	d.mu.Lock()
	meta, err := d.readMeta(table)
	d.mu.Unlock()
	if err != nil {
		return false, err
	}
	if meta.OwnerID == "" || meta.ExpiresAt >= time.Now().UnixMilli() {
		return false, nil
	}
	if err := d.ForceReleaseLock(ctx, table); err != nil {
		return false, err
	}
	return true, nil
}

// GetLockStatus returns the current sidecar contents.
func (d *Driver) GetLockStatus(_ context.Context, table string) (*migrate.LockStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	meta, err := d.readMeta(table)
	if err != nil {
		return nil, err
	}
	return &migrate.LockStatus{
		Held:       meta.OwnerID != "",
		OwnerID:    meta.OwnerID,
		AcquiredAt: meta.AcquiredAt,
		ExpiresAt:  meta.ExpiresAt,
		ProcessID:  meta.ProcessID,
	}, nil
}

func (d *Driver) writeMeta(table string) error {
	b, err := json.Marshal(d.meta)
	if err != nil {
		return fmt.Errorf("filelock: encoding metadata for %q: %w", table, err)
	}
	if err := os.WriteFile(d.metaFile(table), b, 0o644); err != nil {
		return fmt.Errorf("filelock: writing metadata for %q: %w", table, err)
	}
	return nil
}

func (d *Driver) readMeta(table string) (lockMeta, error) {
	b, err := os.ReadFile(d.metaFile(table))
	if err != nil {
		if os.IsNotExist(err) {
			return lockMeta{}, nil
		}
		return lockMeta{}, fmt.Errorf("filelock: reading metadata for %q: %w", table, err)
	}
	var meta lockMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return lockMeta{}, fmt.Errorf("filelock: decoding metadata for %q: %w", table, err)
	}
	return meta, nil
}
