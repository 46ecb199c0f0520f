package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// WriteFileAtomic writes data to a file atomically by writing to a temp file
// in the same directory, syncing, then renaming over the target path.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := afero.TempFile(fsys, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := f.Name()

	// Clean up temp file on any failure
	success := false
	defer func() {
		if !success {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fsys.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// ValidateFileName checks that name is a bare file name, safe to join onto
// a directory.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name must not be empty")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("file name must not contain %q", "..")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("file name must not contain path separators")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("file name must not contain null bytes")
	}
	return nil
}
