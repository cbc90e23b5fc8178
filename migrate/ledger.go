package migrate

import (
	"context"
	"fmt"
)

// LedgerService is the Schema-Version Service (§4.4): it owns the
// ledger table's lifecycle and exposes read/write/remove operations,
// delegating all actual storage work to a SchemaVersionDriver.
type LedgerService struct {
	driver SchemaVersionDriver
	table  string
}

// NewLedgerService builds a LedgerService over the given driver and table.
func NewLedgerService(driver SchemaVersionDriver, table string) *LedgerService {
	return &LedgerService{driver: driver, table: table}
}

// Init ensures the ledger table exists and is valid. No input validation
// on the table name is performed here; it is delegated to the storage
// driver, per spec.md §4.4.
func (s *LedgerService) Init(ctx context.Context) error {
	ok, err := s.driver.IsInitialized(ctx, s.table)
	if err != nil {
		return fmt.Errorf("migrate: ledger: checking initialization: %w", err)
	}
	if !ok {
		if err := s.driver.CreateTable(ctx, s.table); err != nil {
			return fmt.Errorf("%w: cannot create table: %v", ErrLedgerInit, err)
		}
	}
	if err := s.driver.ValidateTable(ctx, s.table); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerInit, err)
	}
	return nil
}

// Save appends-or-replaces a ledger entry by timestamp.
func (s *LedgerService) Save(ctx context.Context, info MigrationInfo) error {
	if err := s.driver.Save(ctx, s.table, info); err != nil {
		return fmt.Errorf("migrate: ledger: save %d: %w", info.Timestamp, err)
	}
	return nil
}

// Remove deletes a ledger entry by timestamp. A missing row is not an error.
func (s *LedgerService) Remove(ctx context.Context, timestamp int64) error {
	if err := s.driver.Remove(ctx, s.table, timestamp); err != nil {
		return fmt.Errorf("migrate: ledger: remove %d: %w", timestamp, err)
	}
	return nil
}

// GetAllExecuted returns a snapshot of all ledger rows.
func (s *LedgerService) GetAllExecuted(ctx context.Context) ([]MigrationInfo, error) {
	rows, err := s.driver.GetAllExecuted(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("migrate: ledger: read all: %w", err)
	}
	return rows, nil
}
