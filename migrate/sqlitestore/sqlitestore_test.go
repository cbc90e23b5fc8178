package sqlitestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-msr/msr/migrate/sqlitestore"
)

func openTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_LedgerLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	init, err := store.IsInitialized(ctx, "schema_migrations")
	require.NoError(t, err)
	require.False(t, init)

	require.NoError(t, store.CreateTable(ctx, "schema_migrations"))
	require.NoError(t, store.ValidateTable(ctx, "schema_migrations"))

	init, err = store.IsInitialized(ctx, "schema_migrations")
	require.NoError(t, err)
	require.True(t, init)

	rows, err := store.GetAllExecuted(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestStore_SaveAndRemove(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateTable(ctx, "schema_migrations"))

	require.NoError(t, store.Save(ctx, "schema_migrations", migrationInfo(1, "1_init.up.sql")))
	require.NoError(t, store.Save(ctx, "schema_migrations", migrationInfo(2, "2_add_col.up.sql")))

	rows, err := store.GetAllExecuted(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0].Timestamp)
	require.Equal(t, int64(2), rows[1].Timestamp)

	require.NoError(t, store.Remove(ctx, "schema_migrations", 1))
	rows, err = store.GetAllExecuted(ctx, "schema_migrations")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].Timestamp)
}

func TestStore_RejectsInvalidTableName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.IsInitialized(ctx, "drop table; --")
	require.Error(t, err)
}

func TestStore_LockAcquireVerifyRelease(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InitLockStorage(ctx, "schema_migrations_lock"))
	require.NoError(t, store.EnsureLockStorageAccessible(ctx, "schema_migrations_lock"))

	ok, err := store.AcquireLock(ctx, "schema_migrations_lock", "owner-1", 60)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.AcquireLock(ctx, "schema_migrations_lock", "owner-2", 60)
	require.NoError(t, err)
	require.False(t, ok, "a second owner must not acquire an already-held lock")

	held, err := store.VerifyLockOwnership(ctx, "schema_migrations_lock", "owner-1")
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, store.ReleaseLock(ctx, "schema_migrations_lock", "owner-1"))
	status, err := store.GetLockStatus(ctx, "schema_migrations_lock")
	require.NoError(t, err)
	require.False(t, status.Held)
}

func TestStore_ExpiredLockIsReleasable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InitLockStorage(ctx, "schema_migrations_lock"))

	ok, err := store.AcquireLock(ctx, "schema_migrations_lock", "owner-1", -1) // already expired
	require.NoError(t, err)
	require.True(t, ok)

	released, err := store.CheckAndReleaseExpiredLock(ctx, "schema_migrations_lock")
	require.NoError(t, err)
	require.True(t, released)

	ok, err = store.AcquireLock(ctx, "schema_migrations_lock", "owner-2", 60)
	require.NoError(t, err)
	require.True(t, ok)
}
