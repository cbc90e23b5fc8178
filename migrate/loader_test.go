package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResult struct{ rows int64 }

func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type fakeSQLDB struct {
	healthy  bool
	execs    []string
	execErr  error
}

func (d *fakeSQLDB) CheckConnection(context.Context) (bool, error) { return d.healthy, nil }
func (d *fakeSQLDB) Query(context.Context, string) (Rows, error)  { return nil, nil }
func (d *fakeSQLDB) Exec(_ context.Context, query string) (Result, error) {
	d.execs = append(d.execs, query)
	if d.execErr != nil {
		return nil, d.execErr
	}
	return fakeResult{rows: 1}, nil
}

func TestSQLLoader_CanHandle(t *testing.T) {
	l := SQLLoader{}
	require.True(t, l.CanHandle("1_a.up.sql"))
	require.False(t, l.CanHandle("1_a.down.sql"))
	require.False(t, l.CanHandle("1_a.go"))
}

func TestSQLLoader_UpExecutesTrimmedContent(t *testing.T) {
	dir := t.TempDir()
	up := filepath.Join(dir, "1_a.up.sql")
	require.NoError(t, os.WriteFile(up, []byte("\n\ncreate table t(x int);\n\n"), 0o644))

	script := &MigrationScript{Timestamp: 1, Name: "1_a.up.sql", Filepath: up}
	runnable, err := SQLLoader{}.Load(script)
	require.NoError(t, err)

	db := &fakeSQLDB{healthy: true}
	out, err := runnable.Up(RunContext{Ctx: context.Background(), DB: db})
	require.NoError(t, err)
	require.Equal(t, "rows_affected=1", out)
	require.Equal(t, []string{"create table t(x int);"}, db.execs)
}

func TestSQLLoader_UpRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	up := filepath.Join(dir, "1_a.up.sql")
	require.NoError(t, os.WriteFile(up, []byte("   \n  "), 0o644))

	runnable, err := SQLLoader{}.Load(&MigrationScript{Filepath: up, Name: "1_a.up.sql"})
	require.NoError(t, err)
	_, err = runnable.Up(RunContext{Ctx: context.Background(), DB: &fakeSQLDB{healthy: true}})
	require.Error(t, err)
}

func TestSQLLoader_DownReadsSiblingFile(t *testing.T) {
	dir := t.TempDir()
	up := filepath.Join(dir, "1_a.up.sql")
	down := filepath.Join(dir, "1_a.down.sql")
	require.NoError(t, os.WriteFile(up, []byte("create table t(x int);"), 0o644))
	require.NoError(t, os.WriteFile(down, []byte("drop table t;"), 0o644))

	runnable, err := SQLLoader{}.Load(&MigrationScript{Filepath: up, Name: "1_a.up.sql"})
	require.NoError(t, err)
	down2, ok := runnable.(DownRunnable)
	require.True(t, ok)

	db := &fakeSQLDB{healthy: true}
	_, err = down2.Down(RunContext{Ctx: context.Background(), DB: db})
	require.NoError(t, err)
	require.Equal(t, []string{"drop table t;"}, db.execs)
}

func TestSQLLoader_DownMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	up := filepath.Join(dir, "1_a.up.sql")
	require.NoError(t, os.WriteFile(up, []byte("create table t(x int);"), 0o644))

	runnable, err := SQLLoader{}.Load(&MigrationScript{Filepath: up, Name: "1_a.up.sql"})
	require.NoError(t, err)
	down, ok := runnable.(DownRunnable)
	require.True(t, ok)
	_, err = down.Down(RunContext{Ctx: context.Background(), DB: &fakeSQLDB{healthy: true}})
	require.Error(t, err)
}

func TestCodeLoader_RequiresExactlyOneRegistration(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	loader := NewCodeLoader()
	require.True(t, loader.CanHandle("2_b.go"))

	// Zero registrations.
	_, err := loader.Load(&MigrationScript{Timestamp: 2, Name: "2_b.go"})
	require.ErrorIs(t, err, ErrNoRunnable)

	// Exactly one.
	Register(2, downlessRunnable{})
	runnable, err := loader.Load(&MigrationScript{Timestamp: 2, Name: "2_b.go"})
	require.NoError(t, err)
	require.NotNil(t, runnable)

	// More than one.
	Register(2, downlessRunnable{})
	_, err = loader.Load(&MigrationScript{Timestamp: 2, Name: "2_b.go"})
	require.ErrorIs(t, err, ErrNoRunnable)
}

func TestLoaderRegistry_IsHybrid(t *testing.T) {
	reg := NewLoaderRegistry(SQLLoader{}, NewCodeLoader())
	hybrid, byLoader := reg.IsHybrid([]*MigrationScript{
		{Filepath: "1_a.up.sql"},
		{Filepath: "2_b.go"},
	})
	require.True(t, hybrid)
	require.Len(t, byLoader, 2)

	hybrid, _ = reg.IsHybrid([]*MigrationScript{{Filepath: "1_a.up.sql"}, {Filepath: "2_a.up.sql"}})
	require.False(t, hybrid)
}
