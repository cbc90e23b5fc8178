package filelock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-msr/msr/migrate/filelock"
)

func TestDriver_AcquireVerifyRelease(t *testing.T) {
	dir := t.TempDir()
	d := filelock.New(dir)
	ctx := context.Background()

	require.NoError(t, d.InitLockStorage(ctx, "schema_migrations_lock"))
	require.NoError(t, d.EnsureLockStorageAccessible(ctx, "schema_migrations_lock"))

	ok, err := d.AcquireLock(ctx, "schema_migrations_lock", "owner-1", 60)
	require.NoError(t, err)
	require.True(t, ok)

	held, err := d.VerifyLockOwnership(ctx, "schema_migrations_lock", "owner-1")
	require.NoError(t, err)
	require.True(t, held)

	status, err := d.GetLockStatus(ctx, "schema_migrations_lock")
	require.NoError(t, err)
	require.True(t, status.Held)
	require.Equal(t, "owner-1", status.OwnerID)

	require.NoError(t, d.ReleaseLock(ctx, "schema_migrations_lock", "owner-1"))
	status, err = d.GetLockStatus(ctx, "schema_migrations_lock")
	require.NoError(t, err)
	require.False(t, status.Held)
}

func TestDriver_SecondAcquireFailsWhileHeld(t *testing.T) {
	dir := t.TempDir()
	d := filelock.New(dir)
	ctx := context.Background()
	require.NoError(t, d.InitLockStorage(ctx, "lock"))

	ok, err := d.AcquireLock(ctx, "lock", "owner-1", 60)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = d.AcquireLock(ctx, "lock", "owner-2", 60)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDriver_ExpiredLockIsDetected(t *testing.T) {
	dir := t.TempDir()
	d := filelock.New(dir)
	ctx := context.Background()
	require.NoError(t, d.InitLockStorage(ctx, "lock"))

	ok, err := d.AcquireLock(ctx, "lock", "owner-1", -1)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := d.CheckAndReleaseExpiredLock(ctx, "lock")
	require.NoError(t, err)
	require.True(t, released)

	status, err := d.GetLockStatus(ctx, "lock")
	require.NoError(t, err)
	require.False(t, status.Held)
}

func TestDriver_ForceRelease(t *testing.T) {
	dir := t.TempDir()
	d := filelock.New(dir)
	ctx := context.Background()
	require.NoError(t, d.InitLockStorage(ctx, "lock"))

	_, err := d.AcquireLock(ctx, "lock", "owner-1", 60)
	require.NoError(t, err)
	require.NoError(t, d.ForceReleaseLock(ctx, "lock"))

	status, err := d.GetLockStatus(ctx, "lock")
	require.NoError(t, err)
	require.False(t, status.Held)
}
