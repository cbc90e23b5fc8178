// Package filelog is the default rotating file sink for migrate.Logger
// events, configured by Configuration.Logging (path, maxFiles). It backs
// each LogEntry with a single formatted line through
// gopkg.in/natefinch/lumberjack.v2, the rotating-writer idiom the
// retrieved corpus pulls in for exactly this purpose.
package filelog

import (
	"fmt"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-msr/msr/migrate"
)

// Logger implements migrate.Logger, formatting each entry as a single
// timestamped line and writing it through a lumberjack.Logger, which
// handles rotation and retention on Write.
type Logger struct {
	out    *lumberjack.Logger
	format string
}

// New opens (creating if absent) a rotating log file at path, keeping at
// most maxFiles rotated backups. timestampFormat controls how each
// line's leading timestamp is rendered; time.RFC3339 if empty.
func New(path string, maxFiles int, timestampFormat string) *Logger {
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxBackups: maxFiles,
			Compress:   true,
		},
		format: timestampFormat,
	}
}

var _ migrate.Logger = (*Logger)(nil)

// Close flushes and closes the underlying rotating file.
func (l *Logger) Close() error { return l.out.Close() }

// Log implements migrate.Logger, writing one line per event.
func (l *Logger) Log(entry migrate.LogEntry) {
	line := fmt.Sprintf("%s %s\n", time.Now().Format(l.format), describe(entry))
	_, _ = l.out.Write([]byte(line))
}

func describe(entry migrate.LogEntry) string {
	switch e := entry.(type) {
	case migrate.LogScan:
		return fmt.Sprintf("scan migrated=%d pending=%d ignored=%d", e.Migrated, e.Pending, e.Ignored)
	case migrate.LogLockWait:
		return fmt.Sprintf("lock-wait attempt=%d/%d", e.Attempt, e.Total)
	case migrate.LogLockAcquired:
		return fmt.Sprintf("lock-acquired owner=%s", e.OwnerID)
	case migrate.LogBackup:
		if e.Restoring {
			return fmt.Sprintf("restore path=%s", e.Path)
		}
		return fmt.Sprintf("backup path=%s", e.Path)
	case migrate.LogScript:
		verb := "done"
		if !e.Done {
			verb = "start"
		}
		return fmt.Sprintf("script %s direction=%s name=%s", verb, e.Direction, e.Script.Name)
	case migrate.LogDryRun:
		return fmt.Sprintf("dry-run would_execute=%d would_ignore=%d", e.WouldExecute, e.WouldIgnore)
	case migrate.LogRollback:
		return fmt.Sprintf("rollback strategy=%s done=%v", e.Strategy, e.Done)
	case migrate.LogWarn:
		return fmt.Sprintf("warn %s", e.Message)
	case migrate.LogError:
		return fmt.Sprintf("error %v", e.Error)
	case migrate.LogDone:
		return fmt.Sprintf("result success=%v", e.Success)
	default:
		return "unknown event"
	}
}

// MultiLogger fans a single Log call out to every logger in the list, in
// order, matching the Dispatcher's "fan out, swallow nothing but don't
// abort" shape for the one place migrate.Logger itself needs composing
// (CLI output plus the rotating file sink, simultaneously).
type MultiLogger struct {
	Loggers []migrate.Logger
}

var _ migrate.Logger = MultiLogger{}

// Log implements migrate.Logger.
func (m MultiLogger) Log(entry migrate.LogEntry) {
	for _, l := range m.Loggers {
		if l != nil {
			l.Log(entry)
		}
	}
}
