package filelog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-msr/msr/migrate"
	"github.com/go-msr/msr/migrate/filelog"
)

func TestLogger_WritesLineAndClosesCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.log")
	l := filelog.New(path, 3, "")

	l.Log(migrate.LogScan{Migrated: 1, Pending: 2, Ignored: 0})
	l.Log(migrate.LogError{Error: errors.New("boom")})
	require.NoError(t, l.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "scan migrated=1 pending=2 ignored=0")
	require.Contains(t, string(b), "error boom")
}

type countingLogger struct{ n int }

func (c *countingLogger) Log(migrate.LogEntry) { c.n++ }

func TestMultiLogger_FansOutToEveryLogger(t *testing.T) {
	a, b := &countingLogger{}, &countingLogger{}
	m := filelog.MultiLogger{Loggers: []migrate.Logger{a, b, nil}}

	m.Log(migrate.LogDone{Success: true})

	require.Equal(t, 1, a.n)
	require.Equal(t, 1, b.n)
}
