package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriterCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "lib.xml")
	aw := NewAtomicWriter(DefaultAtomicConfig(), nil)

	require.NoError(t, aw.WriteFile(path, []byte("one")))
	assert.NoFileExists(t, path+".bak", "no backup for a new file")

	require.NoError(t, aw.WriteFile(path, []byte("two")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "one", string(backup))

	assert.NoFileExists(t, path+".lock")
	assert.NoFileExists(t, path+DefaultAtomicConfig().TempSuffix)
}

func TestAtomicWriterWithoutBackupKeepsMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.xml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	cfg := DefaultAtomicConfig()
	cfg.BackupOriginal = false
	cfg.UseFsync = true
	require.NoError(t, NewAtomicWriter(cfg, nil).WriteFile(path, []byte("new")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.NoFileExists(t, path+".bak")
}

func TestAtomicWriterRemovesStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.xml")
	require.NoError(t, os.WriteFile(path+".lock", []byte("999999999\n"), 0o644))

	require.NoError(t, NewAtomicWriter(DefaultAtomicConfig(), nil).WriteFile(path, []byte("ok")))
	assert.NoFileExists(t, path+".lock")
}
