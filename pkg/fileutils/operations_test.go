package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	tempDir := t.TempDir()

	nested := filepath.Join(tempDir, "pictures", "42")
	require.NoError(t, EnsureDir(nested))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Creating it again is fine.
	assert.NoError(t, EnsureDir(nested))
}

func TestFileExists(t *testing.T) {
	tempDir := t.TempDir()

	path := filepath.Join(tempDir, "a.png")
	assert.False(t, FileExists(path))

	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	assert.True(t, FileExists(path))

	// Directories don't count.
	assert.False(t, FileExists(tempDir))
}

func TestRemoveDirTree(t *testing.T) {
	tempDir := t.TempDir()

	dir := filepath.Join(tempDir, "pictures", "7")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0644))

	require.NoError(t, RemoveDirTree(filepath.Join(tempDir, "pictures")))
	assert.False(t, FileExists(filepath.Join(dir, "a.png")))

	// Removing a missing tree is fine.
	assert.NoError(t, RemoveDirTree(filepath.Join(tempDir, "pictures")))
}
