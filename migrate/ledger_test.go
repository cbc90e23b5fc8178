package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerService_InitIsIdempotent(t *testing.T) {
	drv := newFakeLedgerDriver()
	svc := NewLedgerService(drv, "schema_migrations")
	ctx := context.Background()

	require.NoError(t, svc.Init(ctx))
	require.True(t, drv.init)
	require.NoError(t, svc.Init(ctx))
}

func TestLedgerService_SaveRemoveRoundtrip(t *testing.T) {
	drv := newFakeLedgerDriver()
	svc := NewLedgerService(drv, "schema_migrations")
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))

	require.NoError(t, svc.Save(ctx, MigrationInfo{Timestamp: 1, Name: "1_init.up.sql"}))
	rows, err := svc.GetAllExecuted(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].Timestamp)

	require.NoError(t, svc.Remove(ctx, 1))
	rows, err = svc.GetAllExecuted(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestLedgerService_RemoveMissingIsNotError(t *testing.T) {
	drv := newFakeLedgerDriver()
	svc := NewLedgerService(drv, "schema_migrations")
	require.NoError(t, svc.Remove(context.Background(), 999))
}
