// Package dirbackup provides the default BackupDriver: it snapshots a
// directory (typically the database file(s) or an export dump staged
// there beforehand) into a single tar.gz archive and can restore it back
// in place. No library in the retrieved corpus wraps tar/gzip archiving
// any more conveniently than the standard library already does, so this
// is one of the few components built directly on archive/tar and
// compress/gzip rather than a third-party dependency; see the design
// notes for the full justification.
package dirbackup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-msr/msr/migrate"
)

// Driver implements migrate.BackupDriver and migrate.BackupDeleter over
// a source directory and a destination directory for archives.
type Driver struct {
	SourceDir string
	DestDir   string
	Prefix    string
	Now       func() time.Time
}

// New builds a Driver snapshotting sourceDir into destDir.
func New(sourceDir, destDir string) *Driver {
	return &Driver{SourceDir: sourceDir, DestDir: destDir, Prefix: "backup", Now: time.Now}
}

var (
	_ migrate.BackupDriver  = (*Driver)(nil)
	_ migrate.BackupDeleter = (*Driver)(nil)
)

// Backup archives d.SourceDir into a new timestamped tar.gz under
// d.DestDir and returns its path.
func (d *Driver) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(d.DestDir, 0o755); err != nil {
		return "", fmt.Errorf("dirbackup: creating destination %q: %w", d.DestDir, err)
	}
	name := fmt.Sprintf("%s-%s.tar.gz", d.Prefix, d.now().Format("20060102150405"))
	path := filepath.Join(d.DestDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("dirbackup: creating archive %q: %w", path, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(d.SourceDir, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(d.SourceDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		gz.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("dirbackup: archiving %q: %w", d.SourceDir, err)
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("dirbackup: finalizing archive %q: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("dirbackup: finalizing archive %q: %w", path, err)
	}
	return path, nil
}

// Restore extracts the archive at path back into d.SourceDir, replacing
// its contents.
func (d *Driver) Restore(ctx context.Context, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dirbackup: opening archive %q: %w", path, err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("dirbackup: reading archive %q: %w", path, err)
	}
	defer gz.Close()

	if err := os.RemoveAll(d.SourceDir); err != nil {
		return fmt.Errorf("dirbackup: clearing %q before restore: %w", d.SourceDir, err)
	}
	if err := os.MkdirAll(d.SourceDir, 0o755); err != nil {
		return fmt.Errorf("dirbackup: recreating %q: %w", d.SourceDir, err)
	}

	tr := tar.NewReader(gz)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("dirbackup: reading archive %q: %w", path, err)
		}
		target := filepath.Join(d.SourceDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(d.SourceDir)+string(os.PathSeparator)) && target != d.SourceDir {
			return fmt.Errorf("dirbackup: archive entry %q escapes destination directory", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
	return nil
}

// DeleteBackup removes the archive at path, implementing migrate.BackupDeleter.
func (d *Driver) DeleteBackup(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dirbackup: deleting %q: %w", path, err)
	}
	return nil
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
