package common

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExists checks if a regular file exists at the specified path
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}

// EnsureParentDir creates the directory holding path if it is missing
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)

	if err := createDir(dir); err != nil {
		return fmt.Errorf("failed to create dir (%s): %w", dir, err)
	}

	return nil
}

// createDir creates a file system directory if it doesn't exist
func createDir(path string) error {
	_, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0700); err != nil {
			return err
		}
	}

	return nil
}
