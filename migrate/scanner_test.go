package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("-- noop\n"), 0o644))
	}
}

func TestScanner_PartitionsByHighWaterMark(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"1_create_users.up.sql",
		"2_create_orders.up.sql",
		"3_add_index.up.sql",
		"0_ancient.up.sql", // below the watermark: ignored, not pending
	)
	reg := NewLoaderRegistry(SQLLoader{})
	cfg := Defaults()
	cfg.Folder = dir
	s := NewScanner(cfg, reg)

	ledger := []MigrationInfo{{Timestamp: 2, Name: "2_create_orders.up.sql"}}
	res, warnings, err := s.Scan(ledger)
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Len(t, res.Migrated, 1)
	require.Equal(t, int64(2), res.Migrated[0].Timestamp)

	require.Len(t, res.Pending, 1)
	require.Equal(t, int64(3), res.Pending[0].Timestamp)

	// 0 and 1 were never applied and both sit below the watermark (2).
	require.Len(t, res.Ignored, 2)
	require.Equal(t, int64(0), res.Ignored[0].Timestamp)
	require.Equal(t, int64(1), res.Ignored[1].Timestamp)

	require.Len(t, res.All, 4)
}

func TestScanner_DuplicateTimestampFails(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "5_a.up.sql", "5_b.up.sql")
	reg := NewLoaderRegistry(SQLLoader{})
	cfg := Defaults()
	cfg.Folder = dir
	s := NewScanner(cfg, reg)

	_, _, err := s.Scan(nil)
	require.ErrorIs(t, err, ErrDuplicateTimestamp)
}

func TestScanner_UnrecognizedPatternWarns(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "README.up.sql")
	reg := NewLoaderRegistry(SQLLoader{})
	cfg := Defaults()
	cfg.Folder = dir
	s := NewScanner(cfg, reg)

	res, warnings, err := s.Scan(nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Empty(t, res.All)
}

func TestScanner_UnknownExtensionSkippedSilently(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "1_create_users.up.sql", "notes.txt")
	reg := NewLoaderRegistry(SQLLoader{})
	cfg := Defaults()
	cfg.Folder = dir
	s := NewScanner(cfg, reg)

	res, warnings, err := s.Scan(nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, res.All, 1)
}

func TestScanner_EmptyFolderAllEmpty(t *testing.T) {
	dir := t.TempDir()
	reg := NewLoaderRegistry(SQLLoader{})
	cfg := Defaults()
	cfg.Folder = dir
	s := NewScanner(cfg, reg)

	res, warnings, err := s.Scan(nil)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Empty(t, res.All)
	require.Empty(t, res.Pending)
	require.Empty(t, res.Migrated)
	require.Empty(t, res.Ignored)
}
