package migrate

import (
	"context"
	"sort"
	"sync"
)

// fakeDB is a minimal DB/SQLDB/Transactor implementation for tests that
// don't need a real database: it just tracks whether the connection is
// reported as healthy.
type fakeDB struct {
	healthy bool
}

func (f *fakeDB) CheckConnection(context.Context) (bool, error) { return f.healthy, nil }

// fakeLedgerDriver is an in-memory SchemaVersionDriver.
type fakeLedgerDriver struct {
	mu   sync.Mutex
	init bool
	rows map[int64]MigrationInfo
}

func newFakeLedgerDriver(seed ...MigrationInfo) *fakeLedgerDriver {
	d := &fakeLedgerDriver{rows: make(map[int64]MigrationInfo)}
	for _, s := range seed {
		d.rows[s.Timestamp] = s
	}
	return d
}

func (d *fakeLedgerDriver) IsInitialized(context.Context, string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.init, nil
}
func (d *fakeLedgerDriver) CreateTable(context.Context, string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.init = true
	return nil
}
func (d *fakeLedgerDriver) ValidateTable(context.Context, string) error { return nil }
func (d *fakeLedgerDriver) GetAllExecuted(context.Context, string) ([]MigrationInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]MigrationInfo, 0, len(d.rows))
	for _, r := range d.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
func (d *fakeLedgerDriver) Save(_ context.Context, _ string, info MigrationInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows[info.Timestamp] = info
	return nil
}
func (d *fakeLedgerDriver) Remove(_ context.Context, _ string, ts int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rows, ts)
	return nil
}

// fakeLockDriver is an in-memory LockingDriver that never contends,
// useful for tests exercising everything above the lock layer.
type fakeLockDriver struct {
	mu     sync.Mutex
	held   bool
	owner  string
}

func (d *fakeLockDriver) InitLockStorage(context.Context, string) error               { return nil }
func (d *fakeLockDriver) EnsureLockStorageAccessible(context.Context, string) error    { return nil }
func (d *fakeLockDriver) AcquireLock(_ context.Context, _ string, owner string, _ int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		return false, nil
	}
	d.held, d.owner = true, owner
	return true, nil
}
func (d *fakeLockDriver) VerifyLockOwnership(_ context.Context, _ string, owner string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held && d.owner == owner, nil
}
func (d *fakeLockDriver) ReleaseLock(_ context.Context, _ string, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held && d.owner == owner {
		d.held, d.owner = false, ""
	}
	return nil
}
func (d *fakeLockDriver) ForceReleaseLock(context.Context, string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held, d.owner = false, ""
	return nil
}
func (d *fakeLockDriver) CheckAndReleaseExpiredLock(context.Context, string) (bool, error) {
	return false, nil
}
func (d *fakeLockDriver) GetLockStatus(context.Context, string) (*LockStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &LockStatus{Held: d.held, OwnerID: d.owner}, nil
}

// fakeBackupDriver is an in-memory BackupDriver.
type fakeBackupDriver struct {
	mu        sync.Mutex
	n         int
	snapshots map[string]bool
	restored  []string
	failNext  bool
}

func newFakeBackupDriver() *fakeBackupDriver {
	return &fakeBackupDriver{snapshots: make(map[string]bool)}
}

func (d *fakeBackupDriver) Backup(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	path := "backup-" + itoa(d.n)
	d.snapshots[path] = true
	return path, nil
}
func (d *fakeBackupDriver) Restore(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext {
		d.failNext = false
		return errFakeRestore
	}
	d.restored = append(d.restored, path)
	return nil
}
func (d *fakeBackupDriver) DeleteBackup(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.snapshots, path)
	return nil
}

var errFakeRestore = errString("fake restore failed")

type errString string

func (e errString) Error() string { return string(e) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
