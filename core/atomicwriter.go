package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrLockTimeout is returned when another process holds a file's lock for too long.
var ErrLockTimeout = errors.New("timeout waiting for file lock")

// AtomicWriteConfig controls atomic writing behavior
type AtomicWriteConfig struct {
	UseFsync       bool          // Force fsync before the rename
	LockTimeout    time.Duration // Max time to wait for a file lock
	TempSuffix     string        // Suffix for temporary files
	BackupOriginal bool          // Keep the previous content as <path>.bak
}

// DefaultAtomicConfig provides the defaults used by the CLI.
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{
		UseFsync:       false,
		LockTimeout:    5 * time.Second,
		TempSuffix:     ".btstudio.tmp",
		BackupOriginal: true,
	}
}

// AtomicWriter replaces files through a temporary sibling and a rename, guarded by a
// <path>.lock file holding the writer's pid.
type AtomicWriter struct {
	config AtomicWriteConfig
	log    *zap.Logger

	mu    sync.Mutex
	locks map[string]*os.File
}

// NewAtomicWriter creates a new atomic writer. A nil logger discards output.
func NewAtomicWriter(config AtomicWriteConfig, log *zap.Logger) *AtomicWriter {
	if log == nil {
		log = zap.NewNop()
	}
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{
		config: config,
		log:    log,
		locks:  make(map[string]*os.File),
	}
}

// WriteFile atomically replaces path with data, creating parent directories as needed.
func (aw *AtomicWriter) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := aw.acquireLock(path); err != nil {
		return fmt.Errorf("failed to acquire lock for %s: %w", path, err)
	}
	defer aw.releaseLock(path)

	var mode fs.FileMode = 0o644
	info, statErr := os.Stat(path)
	if statErr == nil {
		mode = info.Mode().Perm()
		if aw.config.BackupOriginal {
			if err := copyFile(path, path+".bak", mode); err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
		}
	}

	tempPath := path + aw.config.TempSuffix
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write content: %w", err)
	}
	if aw.config.UseFsync {
		if err := tempFile.Sync(); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to sync: %w", err)
		}
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to atomic rename: %w", err)
	}
	aw.log.Debug("file written", zap.String("file", path), zap.Int("bytes", len(data)))
	return nil
}

func (aw *AtomicWriter) acquireLock(path string) error {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	if _, held := aw.locks[path]; held {
		return nil
	}

	lockPath := path + ".lock"
	deadline := time.Now().Add(aw.config.LockTimeout)
	for {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(lockFile, "%d\n", os.Getpid())
			aw.locks[path] = lockFile
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		if isLockStale(lockPath) {
			aw.log.Warn("removing stale lock", zap.String("file", lockPath))
			os.Remove(lockPath)
			continue
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (aw *AtomicWriter) releaseLock(path string) {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	lockFile, held := aw.locks[path]
	if !held {
		return
	}
	lockFile.Close()
	os.Remove(path + ".lock")
	delete(aw.locks, path)
}

// isLockStale reports whether the lock file is unreadable or names a dead process.
func isLockStale(lockPath string) bool {
	content, err := os.ReadFile(lockPath)
	if err != nil {
		return true
	}
	var pid int
	if _, err := fmt.Sscanf(string(content), "%d", &pid); err != nil {
		return true
	}
	return !isProcessAlive(pid)
}

func copyFile(from, to string, mode fs.FileMode) error {
	content, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	return os.WriteFile(to, content, mode)
}

// Cleanup releases every lock still held (call on shutdown).
func (aw *AtomicWriter) Cleanup() {
	aw.mu.Lock()
	paths := make([]string, 0, len(aw.locks))
	for path := range aw.locks {
		paths = append(paths, path)
	}
	aw.mu.Unlock()
	for _, path := range paths {
		aw.releaseLock(path)
	}
}
