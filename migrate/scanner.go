package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Scanner walks a migration folder, classifies discovered files against
// the ledger, and produces a ScanResult. It mirrors the teacher's
// LocalDir.Files/Version/Desc split, generalized to configurable
// patterns and loader-driven extension recognition instead of a single
// hardcoded ".sql" convention.
type Scanner struct {
	Folder    string
	Recursive bool
	Patterns  []*regexp.Regexp
	Registry  *LoaderRegistry
}

// NewScanner builds a Scanner from a Configuration and LoaderRegistry.
func NewScanner(cfg Configuration, reg *LoaderRegistry) *Scanner {
	patterns := cfg.FilePatterns
	if len(patterns) == 0 {
		patterns = DefaultFilePatterns
	}
	return &Scanner{Folder: cfg.Folder, Recursive: cfg.Recursive, Patterns: patterns, Registry: reg}
}

// Scan enumerates migration files under s.Folder, classifies them
// against the given ledger snapshot, and returns the ScanResult. Files no
// registered loader can handle are skipped without a warning; Warnings
// (loadable files matching no file pattern) are returned separately;
// they never fail the scan on their own.
func (s *Scanner) Scan(ledger []MigrationInfo) (*ScanResult, []string, error) {
	var warnings []string
	paths, err := s.enumerate()
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: scan: %w", err)
	}

	seen := make(map[int64]*MigrationScript, len(paths))
	scripts := make([]*MigrationScript, 0, len(paths))
	for _, p := range paths {
		if s.Registry != nil && !s.Registry.CanHandle(p) {
			continue
		}
		ts, ok := s.extractTimestamp(filepath.Base(p))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("migrate: scan: %q matches no file pattern, ignoring", p))
			continue
		}
		if existing, dup := seen[ts]; dup {
			return nil, warnings, fmt.Errorf("%w: %q and %q both resolve to timestamp %d", ErrDuplicateTimestamp, existing.Name, filepath.Base(p), ts)
		}
		ms := &MigrationScript{Timestamp: ts, Name: filepath.Base(p), Filepath: p}
		seen[ts] = ms
		scripts = append(scripts, ms)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Timestamp < scripts[j].Timestamp })

	ledgerSet := make(map[int64]MigrationInfo, len(ledger))
	var highWater int64 = -1
	for _, l := range ledger {
		ledgerSet[l.Timestamp] = l
		if l.Timestamp > highWater {
			highWater = l.Timestamp
		}
	}

	res := &ScanResult{All: scripts}
	for _, ms := range scripts {
		switch {
		case isLedgered(ledgerSet, ms.Timestamp):
			res.Migrated = append(res.Migrated, ms)
		case ms.Timestamp > highWater:
			res.Pending = append(res.Pending, ms)
		default:
			// Older-than-watermark file never applied: ignored, not
			// pending, to preserve ordering (the high-water-mark rule).
			res.Ignored = append(res.Ignored, ms)
		}
	}
	return res, warnings, nil
}

func isLedgered(set map[int64]MigrationInfo, ts int64) bool {
	_, ok := set[ts]
	return ok
}

func (s *Scanner) extractTimestamp(name string) (int64, bool) {
	for _, p := range s.Patterns {
		m := p.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			var ts int64
			if _, err := fmt.Sscanf(g, "%d", &ts); err == nil {
				return ts, true
			}
		}
	}
	return 0, false
}

func (s *Scanner) enumerate() ([]string, error) {
	var out []string
	if !s.Recursive {
		entries, err := os.ReadDir(s.Folder)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			out = append(out, filepath.Join(s.Folder, e.Name()))
		}
		return out, nil
	}
	err := filepath.WalkDir(s.Folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
