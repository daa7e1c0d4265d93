package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, isProcessAlive(os.Getpid()))
	for _, pid := range []int{-1, 0, 999999999} {
		assert.False(t, isProcessAlive(pid), "pid %d", pid)
	}
}

func TestIsLockStale(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, content string
		stale         bool
	}{
		{"live process", fmt.Sprintf("%d\n", os.Getpid()), false},
		{"dead process", "999999999\n", true},
		{"garbage", "not a pid", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lock := filepath.Join(dir, tt.name+".lock")
			require.NoError(t, os.WriteFile(lock, []byte(tt.content), 0o644))
			assert.Equal(t, tt.stale, isLockStale(lock))
		})
	}
	assert.True(t, isLockStale(filepath.Join(dir, "missing.lock")))
}

func TestLockHeldByLiveProcessTimesOut(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.xml")
	require.NoError(t, os.WriteFile(path+".lock", []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	cfg := DefaultAtomicConfig()
	cfg.LockTimeout = 120 * time.Millisecond
	err := NewAtomicWriter(cfg, nil).WriteFile(path, []byte("x"))
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.NoFileExists(t, path)
}
