package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Validator runs the two validation phases described in spec.md §4.6:
// a pre-execution phase that can prevent backup creation from even being
// considered, and an optional file-integrity phase that runs after the
// lock is held but still before any backup.
type Validator struct {
	Registry *LoaderRegistry
	Strict   bool
}

// NewValidator builds a Validator bound to the given loader registry.
func NewValidator(reg *LoaderRegistry, strict bool) *Validator {
	return &Validator{Registry: reg, Strict: strict}
}

// PreExecution runs checks 1-3 of spec.md §4.6. A non-nil error here
// means the Orchestrator must abort before BACKUP without engaging
// rollback (the fail-fast ordering rule of spec.md §4.1).
func (v *Validator) PreExecution(scan *ScanResult, txMode TransactionMode, warnings []string) error {
	if hybrid, byLoader := v.Registry.IsHybrid(scan.Pending); hybrid && txMode != TxNone {
		return hybridError(byLoader, txMode)
	}
	if err := checkOrdering(scan); err != nil {
		return err
	}
	if v.Strict && len(warnings) > 0 {
		return fmt.Errorf("migrate: validate: %d warning(s) treated as errors: %s", len(warnings), strings.Join(warnings, "; "))
	}
	return nil
}

func hybridError(byLoader map[string][]string, mode TransactionMode) error {
	names := make([]string, 0, len(byLoader))
	for loader := range byLoader {
		names = append(names, loader)
	}
	sort.Strings(names)
	var files []string
	for _, loader := range names {
		files = append(files, byLoader[loader]...)
	}
	sort.Strings(files)
	return fmt.Errorf(
		"%w: %s; current transaction mode: %s; remedies: (1) switch transaction mode to none, "+
			"(2) split the pending migrations into separate single-loader batches, "+
			"(3) convert all pending migrations to a single file format",
		ErrHybridTransactional, strings.Join(files, ", "), mode,
	)
}

// checkOrdering rejects a non-ignored pending script whose timestamp is
// at or below the ledger high-water mark; the Scanner's classification
// should already prevent this, but the Validator re-asserts the
// invariant so a misbehaving Scanner implementation is still caught.
func checkOrdering(scan *ScanResult) error {
	var maxMigrated int64 = -1
	for _, m := range scan.Migrated {
		if m.Timestamp > maxMigrated {
			maxMigrated = m.Timestamp
		}
	}
	for _, p := range scan.Pending {
		if p.Timestamp <= maxMigrated {
			return fmt.Errorf("%w: pending file %q has timestamp %d <= high-water mark %d", ErrOrdering, p.Name, p.Timestamp, maxMigrated)
		}
	}
	return nil
}

// Integrity recomputes the content hash of every migrated script that
// has a recorded hash in the ledger and rejects on mismatch. It runs
// after lock acquisition but before any backup, and never engages
// rollback on its own per the Open Question decision recorded in
// SPEC_FULL.md.
func (v *Validator) Integrity(scan *ScanResult, ledger map[int64]MigrationInfo) error {
	for _, m := range scan.Migrated {
		info, ok := ledger[m.Timestamp]
		if !ok || info.ContentHash == "" {
			continue
		}
		actual, err := HashFile(m.Filepath)
		if err != nil {
			return fmt.Errorf("migrate: validate: hashing %q: %w", m.Name, err)
		}
		if actual != info.ContentHash {
			return fmt.Errorf("%w: %q: recorded %s, computed %s", ErrIntegrityMismatch, m.Name, info.ContentHash, actual)
		}
	}
	return nil
}

// HashFile computes the sha256 hex digest of a file's contents, used for
// MigrationScript.ContentHash and the integrity check above.
func HashFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
