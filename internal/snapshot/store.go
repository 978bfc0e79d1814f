package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/musicsnap/internal/model"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Dirs is the directory set of one range.
type Dirs struct {
	Latest string
	Old    string
	Public string
}

// Store implements snapshot persistence on the local filesystem.
type Store struct {
	dataDir   string
	publicDir string
	filenames []string
}

// NewStore creates a Store rooted at dataDir with the public mirror under publicDir.
func NewStore(dataDir, publicDir string) *Store {
	return &Store{
		dataDir:   dataDir,
		publicDir: publicDir,
		filenames: model.Filenames(),
	}
}

// Dirs returns the directory set for r.
func (s *Store) Dirs(r model.Range) Dirs {
	return Dirs{
		Latest: filepath.Join(s.dataDir, string(r), "latest"),
		Old:    filepath.Join(s.dataDir, string(r), "old"),
		Public: filepath.Join(s.publicDir, string(r), "latest"),
	}
}

// EnsureDirectories creates the three directories of r if absent. A
// non-directory in place of any of them is an error.
func (s *Store) EnsureDirectories(r model.Range) error {
	dirs := s.Dirs(r)
	for _, dir := range []string{dirs.Latest, dirs.Old, dirs.Public} {
		_, statErr := os.Stat(dir)
		// MkdirAll fails with ENOTDIR when a regular file sits at dir.
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return &FilesystemError{Op: "mkdir", Path: dir, Err: err}
		}
		if statErr != nil {
			slog.Info("created directory", "range", r, "dir", dir)
		}
	}
	return nil
}

// WriteLatest replaces latest/filename with payload pretty-printed.
func (s *Store) WriteLatest(r model.Range, filename string, payload []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		return fmt.Errorf("format %s: %w", filename, err)
	}
	path := filepath.Join(s.Dirs(r).Latest, filename)
	return writeFileAtomic(path, pretty.Bytes())
}

// BackupLatestToOld copies every known file present in latest into old.
func (s *Store) BackupLatestToOld(r model.Range) {
	dirs := s.Dirs(r)
	slog.Info("backing up latest data to old", "range", r)
	for _, name := range s.filenames {
		src := filepath.Join(dirs.Latest, name)
		if !fileExists(src) {
			continue
		}
		if err := copyFile(src, filepath.Join(dirs.Old, name)); err != nil {
			slog.Error("backup failed", "range", r, "file", name, "error", err)
			continue
		}
		slog.Debug("backed up", "range", r, "file", name)
	}
}

// RestoreOldToLatest copies every known file present in old into latest.
// It reports whether at least one file was restored.
func (s *Store) RestoreOldToLatest(r model.Range) bool {
	dirs := s.Dirs(r)
	slog.Info("copying old data to latest as fallback", "range", r)
	if !dirExists(dirs.Old) {
		slog.Warn("no old data directory, cannot use fallback", "range", r, "dir", dirs.Old)
		return false
	}

	restored := 0
	for _, name := range s.filenames {
		src := filepath.Join(dirs.Old, name)
		if !fileExists(src) {
			slog.Info("old file not found", "range", r, "file", name)
			continue
		}
		if err := copyFile(src, filepath.Join(dirs.Latest, name)); err != nil {
			slog.Error("restore failed", "range", r, "file", name, "error", err)
			continue
		}
		slog.Info("restored from old", "range", r, "file", name)
		restored++
	}
	return restored > 0
}

// MirrorLatestToPublic copies every regular file in latest into the public mirror.
func (s *Store) MirrorLatestToPublic(r model.Range) {
	dirs := s.Dirs(r)
	entries, err := os.ReadDir(dirs.Latest)
	if err != nil {
		slog.Error("mirror failed to list latest", "range", r, "error", &FilesystemError{Op: "readdir", Path: dirs.Latest, Err: err})
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if err := copyFile(filepath.Join(dirs.Latest, name), filepath.Join(dirs.Public, name)); err != nil {
			slog.Error("mirror failed", "range", r, "file", name, "error", err)
			continue
		}
		slog.Debug("mirrored to public", "range", r, "file", name)
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return &FilesystemError{Op: "read", Path: src, Err: err}
	}
	return writeFileAtomic(dst, data)
}

// writeFileAtomic replaces path with data via a temp file in the same
// directory, so readers never observe a partially written snapshot.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &FilesystemError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return &FilesystemError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		cleanup()
		return &FilesystemError{Op: "chmod", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &FilesystemError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &FilesystemError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
