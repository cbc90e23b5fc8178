// Package render provides the default CLI renderer: it implements
// migrate.Logger and turns structured events into colorized terminal
// output, grounded in the same fatih/color + olekukonko/tablewriter
// combination the rest of the retrieved corpus uses for CLI reporting.
package render

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/go-msr/msr/migrate"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgMagenta, color.Bold)
)

// Renderer implements migrate.Logger, writing to an io.Writer (os.Stdout
// by default).
type Renderer struct {
	out io.Writer
}

// New builds a Renderer writing to os.Stdout.
func New() *Renderer { return &Renderer{out: os.Stdout} }

// NewTo builds a Renderer writing to an arbitrary writer, used by tests
// and by any caller that wants to capture output instead of printing it.
func NewTo(w io.Writer) *Renderer { return &Renderer{out: w} }

var _ migrate.Logger = (*Renderer)(nil)

// Log implements migrate.Logger, dispatching on the concrete LogEntry type.
func (r *Renderer) Log(entry migrate.LogEntry) {
	switch e := entry.(type) {
	case migrate.LogScan:
		headerColor.Fprintln(r.out, "Scan complete")
		r.table([]string{"Migrated", "Pending", "Ignored"}, [][]string{{
			fmt.Sprintf("%d", e.Migrated), fmt.Sprintf("%d", e.Pending), fmt.Sprintf("%d", e.Ignored),
		}})
	case migrate.LogLockWait:
		warningColor.Fprintf(r.out, "waiting for migration lock (attempt %d/%d)\n", e.Attempt, e.Total)
	case migrate.LogLockAcquired:
		successColor.Fprintf(r.out, "lock acquired (owner %s)\n", e.OwnerID)
	case migrate.LogBackup:
		if e.Restoring {
			infoColor.Fprintf(r.out, "restoring backup: %s\n", e.Path)
		} else {
			infoColor.Fprintf(r.out, "backup created: %s\n", e.Path)
		}
	case migrate.LogScript:
		r.script(e)
	case migrate.LogDryRun:
		warningColor.Fprintf(r.out, "dry run: would execute %d, ignore %d\n", e.WouldExecute, e.WouldIgnore)
	case migrate.LogRollback:
		if e.Done {
			successColor.Fprintf(r.out, "rollback (%s) complete\n", e.Strategy)
		} else {
			warningColor.Fprintf(r.out, "rollback (%s) starting\n", e.Strategy)
		}
	case migrate.LogWarn:
		warningColor.Fprintf(r.out, "warning: %s\n", e.Message)
	case migrate.LogError:
		errorColor.Fprintf(r.out, "error: %v\n", e.Error)
	case migrate.LogDone:
		if e.Success {
			successColor.Fprintln(r.out, "done")
		} else {
			errorColor.Fprintln(r.out, "failed")
		}
	}
}

func (r *Renderer) script(e migrate.LogScript) {
	verb := "applying"
	if e.Direction == "down" {
		verb = "reverting"
	}
	if e.Done {
		successColor.Fprintf(r.out, "  %s %s done\n", verb, e.Script.Name)
	} else {
		infoColor.Fprintf(r.out, "  %s %s...\n", verb, e.Script.Name)
	}
}

func (r *Renderer) table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetRowSeparator("-")
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// RenderLedger prints the ledger rows from an Orchestrator.List result as
// a table, used by the "msr list" command.
func (r *Renderer) RenderLedger(rows []*migrate.MigrationInfo) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"Timestamp", "Name", "Applied At", "Result"})
	table.SetBorder(false)
	for _, row := range rows {
		appliedAt := ""
		if row.FinishedAt > 0 {
			appliedAt = time.UnixMilli(row.FinishedAt).Format(time.RFC3339)
		}
		table.Append([]string{fmt.Sprintf("%d", row.Timestamp), row.Name, appliedAt, row.Result})
	}
	table.Render()
}

// RenderResult prints a summary banner for a completed MigrationResult.
func (r *Renderer) RenderResult(result *migrate.MigrationResult) {
	if result.Success {
		successColor.Fprintf(r.out, "migration succeeded: %d executed, %d ignored\n", len(result.Executed), len(result.Ignored))
		return
	}
	errorColor.Fprintf(r.out, "migration failed after %d executed\n", len(result.Executed))
	for _, err := range result.Errors {
		errorColor.Fprintf(r.out, "  - %v\n", err)
	}
}
