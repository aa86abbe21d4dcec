package fileutils

import (
	"os"

	"github.com/pkg/errors"
)

// EnsureDir creates the directory and any missing parents.
func EnsureDir(dir string) error {
	return errors.WithStack(os.MkdirAll(dir, 0755))
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// RemoveDirTree deletes the directory and everything under it. A missing
// directory is not an error.
func RemoveDirTree(dir string) error {
	return errors.WithStack(os.RemoveAll(dir))
}
