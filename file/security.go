package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// ensureSecureDir creates dir if necessary and rejects a directory that
// is world-writable or not owned by the current user, before a new
// table file is created inside it.
func ensureSecureDir(dir string) error {
	if dir == "" || dir == "." {
		return fmt.Errorf("shelf: table path must include a directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("shelf: resolving directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return fmt.Errorf("shelf: creating directory %s: %w", abs, err)
	}
	return validateDirectorySecurity(abs)
}

func validateDirectorySecurity(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("shelf: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("shelf: %s is not a directory", dir)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("shelf: directory %s is world-writable", dir)
	}
	return validateOwnership(dir, info)
}

// validateExistingFile is run before opening any pre-existing table
// file, regardless of mode, so that a ReadOnly open is held to the same
// ownership bar as a ReadWrite one.
func validateExistingFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("shelf: stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("shelf: %s is not a regular file", path)
	}
	return validateOwnership(path, info)
}
