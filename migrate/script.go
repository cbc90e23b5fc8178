package migrate

import (
	"context"
	"fmt"
)

// MigrationScript represents a single migration file discovered on disk.
type MigrationScript struct {
	// Timestamp is the monotonic version extracted from the filename by
	// the first file pattern that captures a numeric group.
	Timestamp int64
	// Name is the original filename, e.g. "20230101120000_add_users.up.sql".
	Name string
	// Filepath is the absolute path to the file.
	Filepath string
	// ContentHash is a stable digest of the file bytes, computed with
	// HashFile by the Orchestrator for each script it is about to run up
	// and saved with that script's ledger entry.
	ContentHash string

	loaded Runnable
}

// String implements fmt.Stringer for log-friendly output.
func (s *MigrationScript) String() string {
	return fmt.Sprintf("%d_%s", s.Timestamp, s.Name)
}

// Runnable is what a Loader produces from a MigrationScript. Up runs the
// forward migration; a Runnable that can be reversed also implements
// DownRunnable.
type Runnable interface {
	Up(ctx RunContext) (string, error)
}

// DownRunnable is implemented by a Runnable that also supports reversal.
// Not every loaded script can go down (e.g. a one-way code migration).
type DownRunnable interface {
	Runnable
	Down(ctx RunContext) (string, error)
}

// RunContext is the small record passed by reference to every script
// instead of a cyclic db<->handler reference: it carries the external DB
// handle, the ledger entry being built, and an opaque user-supplied
// handler value that scripts may type-assert to something useful.
type RunContext struct {
	Ctx     context.Context
	DB      DB
	Info    *MigrationInfo
	Handler any
}

// MigrationInfo is a persisted ledger entry: what the Schema-Version
// Service writes after a script's Up completes.
type MigrationInfo struct {
	Timestamp   int64
	Name        string
	StartedAt   int64 // unix millis
	FinishedAt  int64 // unix millis
	Username    string
	Result      string
	ContentHash string // empty means "no hash recorded"
}

// ScanResult is the Scanner's output: the full partition of discovered
// scripts into migrated / pending / ignored, plus the (initially empty)
// executed list that the Orchestrator fills in as it runs.
type ScanResult struct {
	All      []*MigrationScript
	Migrated []*MigrationScript
	Pending  []*MigrationScript
	Ignored  []*MigrationScript
	Executed []*MigrationInfo
}
