package migrate

import (
	"fmt"
	"os"
	"strings"
)

// Loader selects files it knows how to turn into a Runnable (§4.3,
// §6 IMigrationScriptLoader).
type Loader interface {
	// CanHandle reports whether this loader recognizes the given path.
	CanHandle(path string) bool
	// Load produces a Runnable for the given script.
	Load(script *MigrationScript) (Runnable, error)
	// Name identifies the loader, used in hybrid-detection error messages.
	Name() string
}

// LoaderRegistry holds an ordered list of loaders; FindLoader returns the
// first whose CanHandle is true, mirroring the teacher's single-dialect
// LocalDir generalized to a pluggable set.
type LoaderRegistry struct {
	loaders []Loader
}

// NewLoaderRegistry builds a registry from the given loaders, tried in order.
func NewLoaderRegistry(loaders ...Loader) *LoaderRegistry {
	return &LoaderRegistry{loaders: loaders}
}

// CanHandle reports whether any registered loader recognizes path.
func (r *LoaderRegistry) CanHandle(path string) bool {
	return r.FindLoader(path) != nil
}

// FindLoader returns the first loader that can handle path, or nil.
func (r *LoaderRegistry) FindLoader(path string) Loader {
	for _, l := range r.loaders {
		if l.CanHandle(path) {
			return l
		}
	}
	return nil
}

// Load resolves the Runnable for a script via its matching loader.
func (r *LoaderRegistry) Load(script *MigrationScript) (Runnable, error) {
	l := r.FindLoader(script.Filepath)
	if l == nil {
		return nil, fmt.Errorf("migrate: no loader registered for %q", script.Name)
	}
	return l.Load(script)
}

// IsHybrid reports whether the given pending set is served by more than
// one loader (spec.md §4.3's "hybrid pending set").
func (r *LoaderRegistry) IsHybrid(pending []*MigrationScript) (bool, map[string][]string) {
	byLoader := make(map[string][]string)
	for _, ms := range pending {
		l := r.FindLoader(ms.Filepath)
		name := "unknown"
		if l != nil {
			name = l.Name()
		}
		byLoader[name] = append(byLoader[name], ms.Name)
	}
	return len(byLoader) > 1, byLoader
}

// --- SQL loader -------------------------------------------------------

// SQLLoader recognizes "*.up.sql" files. Its Runnable reads and executes
// the trimmed file content via the SQLDB's Exec method on Up, and reads
// the sibling "*.down.sql" on Down.
type SQLLoader struct{}

var _ Loader = SQLLoader{}

// CanHandle implements Loader.
func (SQLLoader) CanHandle(path string) bool { return strings.HasSuffix(path, ".up.sql") }

// Name implements Loader.
func (SQLLoader) Name() string { return "sql" }

// Load implements Loader.
func (SQLLoader) Load(script *MigrationScript) (Runnable, error) {
	return &sqlRunnable{path: script.Filepath, name: script.Name}, nil
}

type sqlRunnable struct {
	path string
	name string
}

func (r *sqlRunnable) Up(ctx RunContext) (string, error) {
	content, err := readTrimmed(r.path)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", fmt.Errorf("migrate: sql loader: %q is empty after trimming", r.name)
	}
	return execSQL(ctx, content)
}

func (r *sqlRunnable) Down(ctx RunContext) (string, error) {
	downPath := strings.TrimSuffix(r.path, ".up.sql") + ".down.sql"
	content, err := readTrimmed(downPath)
	if err != nil {
		return "", fmt.Errorf("migrate: sql loader: down file for %q is missing: %w", r.name, err)
	}
	if content == "" {
		return "", fmt.Errorf("migrate: sql loader: down file for %q is empty after trimming", r.name)
	}
	return execSQL(ctx, content)
}

var _ DownRunnable = (*sqlRunnable)(nil)

func readTrimmed(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func execSQL(ctx RunContext, sql string) (string, error) {
	db, ok := ctx.DB.(SQLDB)
	if !ok {
		return "", fmt.Errorf("migrate: sql loader: DB handle does not implement SQLDB")
	}
	res, err := db.Exec(ctx.Ctx, sql)
	if err != nil {
		return "", fmt.Errorf("migrate: sql loader: executing %s: %w", previewSQL(sql), err)
	}
	n, _ := res.RowsAffected()
	return fmt.Sprintf("rows_affected=%d", n), nil
}

const sqlPreviewLen = 80

// previewSQL truncates sql to a short prefix for error messages.
func previewSQL(sql string) string {
	sql = strings.ReplaceAll(sql, "\n", " ")
	if len(sql) <= sqlPreviewLen {
		return sql
	}
	return sql[:sqlPreviewLen] + "..."
}

// --- code loader -------------------------------------------------------

// CodeLoader recognizes "*.go" migration files. Go has no dynamic
// import, so the Go-idiomatic equivalent of "the file exports exactly
// one constructor whose instance has an up method" is a registration:
// the migration's package registers its Runnable against its timestamp
// in an init() func via Register. CodeLoader.Load then looks the
// registration up instead of loading the file.
type CodeLoader struct {
	registry *codeRegistry
}

var _ Loader = (*CodeLoader)(nil)

// NewCodeLoader returns a CodeLoader backed by the process-wide
// registration table populated by Register.
func NewCodeLoader() *CodeLoader {
	return &CodeLoader{registry: globalCodeRegistry}
}

// CanHandle implements Loader.
func (l *CodeLoader) CanHandle(path string) bool { return strings.HasSuffix(path, ".go") }

// Name implements Loader.
func (l *CodeLoader) Name() string { return "code" }

// Load implements Loader. It resolves exactly one registered Runnable
// for the script's timestamp; zero or multiple registrations is an
// error naming the file, mirroring the source semantics exactly.
func (l *CodeLoader) Load(script *MigrationScript) (Runnable, error) {
	rs := l.registry.get(script.Timestamp)
	switch len(rs) {
	case 0:
		return nil, fmt.Errorf("%w: %q registered no runnable", ErrNoRunnable, script.Name)
	case 1:
		return rs[0], nil
	default:
		return nil, fmt.Errorf("%w: %q registered %d runnables, expected exactly one", ErrNoRunnable, script.Name, len(rs))
	}
}

type codeRegistry struct {
	byTimestamp map[int64][]Runnable
}

var globalCodeRegistry = &codeRegistry{byTimestamp: make(map[int64][]Runnable)}

func (c *codeRegistry) get(ts int64) []Runnable { return c.byTimestamp[ts] }

// Register associates a Runnable with a migration timestamp. Call it
// from a migration package's init(): it plays the role the source
// language's "dynamically imported module exporting one constructor"
// plays there.
func Register(timestamp int64, r Runnable) {
	globalCodeRegistry.byTimestamp[timestamp] = append(globalCodeRegistry.byTimestamp[timestamp], r)
}

// ResetRegistry clears all code-loader registrations. Exposed for tests
// that register fixtures under timestamps that might collide across
// test cases.
func ResetRegistry() {
	globalCodeRegistry.byTimestamp = make(map[int64][]Runnable)
}
