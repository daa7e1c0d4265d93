package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoTransaction     = errors.New("no active transaction")
	ErrTransactionActive = errors.New("transaction already in progress")
)

// Operation kinds.
const (
	OpCreate = "create"
	OpModify = "modify"
)

// Transaction states.
const (
	StatusPending    = "pending"
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

// TransactionOperation is one file written by a transaction.
type TransactionOperation struct {
	Type       string    `json:"type"`
	FilePath   string    `json:"file_path"`
	BackupPath string    `json:"backup_path,omitempty"`
	Checksum   string    `json:"checksum,omitempty"` // of the content before the write
	Timestamp  time.Time `json:"timestamp"`
	Completed  bool      `json:"completed"`
	Error      string    `json:"error,omitempty"`
}

// TransactionLog is the persisted record of a transaction.
type TransactionLog struct {
	ID          string                 `json:"id"`
	Started     time.Time              `json:"started"`
	Completed   time.Time              `json:"completed"`
	Operations  []TransactionOperation `json:"operations"`
	Status      string                 `json:"status"`
	Description string                 `json:"description"`
}

// TransactionManager groups file writes so that a failed multi-file save can be undone. Each
// transaction is logged as <logDir>/<id>.json and keeps backups under <logDir>/<id>/.
type TransactionManager struct {
	logDir string
	writer *AtomicWriter
	log    *zap.Logger

	mu      sync.Mutex
	current *TransactionLog
}

// NewTransactionManager creates the log directory and a manager writing through writer.
func NewTransactionManager(logDir string, writer *AtomicWriter, log *zap.Logger) (*TransactionManager, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transaction log dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TransactionManager{logDir: logDir, writer: writer, log: log}, nil
}

// BeginTransaction starts a new transaction.
func (tm *TransactionManager) BeginTransaction(description string) (*TransactionLog, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionActive, tm.current.ID)
	}

	tx := &TransactionLog{
		ID:          "tx_" + uuid.NewString(),
		Started:     time.Now().UTC(),
		Operations:  []TransactionOperation{},
		Status:      StatusPending,
		Description: description,
	}
	if err := tm.writeLog(tx); err != nil {
		return nil, fmt.Errorf("failed to write transaction log: %w", err)
	}
	tm.current = tx
	tm.log.Debug("transaction started", zap.String("tx", tx.ID), zap.String("description", description))
	return tx, nil
}

// Write records and performs one file write inside the current transaction.
func (tm *TransactionManager) Write(path string, data []byte) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return ErrNoTransaction
	}

	op := TransactionOperation{Type: OpCreate, FilePath: path, Timestamp: time.Now().UTC()}
	if original, err := os.ReadFile(path); err == nil {
		op.Type = OpModify
		op.Checksum = checksum(original)
		op.BackupPath = filepath.Join(tm.logDir, tm.current.ID,
			fmt.Sprintf("%03d-%s", len(tm.current.Operations), filepath.Base(path)))
		if err := os.MkdirAll(filepath.Dir(op.BackupPath), 0o755); err != nil {
			return fmt.Errorf("failed to create backup dir: %w", err)
		}
		if err := os.WriteFile(op.BackupPath, original, 0o644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	writeErr := tm.writer.WriteFile(path, data)
	op.Completed = writeErr == nil
	if writeErr != nil {
		op.Error = writeErr.Error()
	}
	tm.current.Operations = append(tm.current.Operations, op)
	if err := tm.writeLog(tm.current); err != nil {
		return errors.Join(writeErr, fmt.Errorf("failed to update transaction log: %w", err))
	}
	return writeErr
}

// CommitTransaction marks the transaction as done.
func (tm *TransactionManager) CommitTransaction() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return ErrNoTransaction
	}
	for _, op := range tm.current.Operations {
		if !op.Completed || op.Error != "" {
			return fmt.Errorf("cannot commit transaction with failed operation on %s", op.FilePath)
		}
	}

	tm.current.Status = StatusCommitted
	tm.current.Completed = time.Now().UTC()
	err := tm.writeLog(tm.current)
	tm.log.Debug("transaction committed", zap.String("tx", tm.current.ID),
		zap.Int("files", len(tm.current.Operations)))
	tm.current = nil
	return err
}

// RollbackTransaction reverts the completed operations in reverse order.
func (tm *TransactionManager) RollbackTransaction() error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.current == nil {
		return ErrNoTransaction
	}

	var errs []error
	for i := len(tm.current.Operations) - 1; i >= 0; i-- {
		op := tm.current.Operations[i]
		if !op.Completed {
			continue
		}
		if err := tm.rollbackOperation(op); err != nil {
			errs = append(errs, fmt.Errorf("failed to rollback %s: %w", op.FilePath, err))
		}
	}

	tm.current.Status = StatusRolledBack
	tm.current.Completed = time.Now().UTC()
	if err := tm.writeLog(tm.current); err != nil {
		errs = append(errs, fmt.Errorf("failed to update transaction log: %w", err))
	}
	tm.log.Warn("transaction rolled back", zap.String("tx", tm.current.ID))
	tm.current = nil
	return errors.Join(errs...)
}

func (tm *TransactionManager) rollbackOperation(op TransactionOperation) error {
	switch op.Type {
	case OpModify:
		content, err := os.ReadFile(op.BackupPath)
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}
		return tm.writer.WriteFile(op.FilePath, content)
	case OpCreate:
		if err := os.Remove(op.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// WriteAll writes every file in one transaction, skipping files whose content is unchanged.
// On the first failure the written files are rolled back. It returns the paths written.
func (tm *TransactionManager) WriteAll(description string, files map[string][]byte) ([]string, error) {
	var changed []string
	for _, path := range slices.Sorted(maps.Keys(files)) {
		if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, files[path]) {
			continue
		}
		changed = append(changed, path)
	}
	if len(changed) == 0 {
		return nil, nil
	}

	if _, err := tm.BeginTransaction(description); err != nil {
		return nil, err
	}
	for _, path := range changed {
		if err := tm.Write(path, files[path]); err != nil {
			if rbErr := tm.RollbackTransaction(); rbErr != nil {
				return nil, errors.Join(err, rbErr)
			}
			return nil, err
		}
	}
	if err := tm.CommitTransaction(); err != nil {
		return nil, err
	}
	return changed, nil
}

// LoadTransaction reads a transaction log by id.
func (tm *TransactionManager) LoadTransaction(txID string) (*TransactionLog, error) {
	data, err := os.ReadFile(filepath.Join(tm.logDir, txID+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction log: %w", err)
	}
	var tx TransactionLog
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to parse transaction log: %w", err)
	}
	return &tx, nil
}

// ListPendingTransactions returns transactions that were neither committed nor rolled back,
// typically left by a crashed process.
func (tm *TransactionManager) ListPendingTransactions() ([]TransactionLog, error) {
	logs, err := tm.logs()
	if err != nil {
		return nil, err
	}
	var pending []TransactionLog
	for _, tx := range logs {
		if tx.Status == StatusPending {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}

// CleanupOldTransactions removes finished transactions completed before olderThan ago,
// together with their backups.
func (tm *TransactionManager) CleanupOldTransactions(olderThan time.Duration) error {
	logs, err := tm.logs()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-olderThan)
	for _, tx := range logs {
		if tx.Status == StatusPending || !tx.Completed.Before(cutoff) {
			continue
		}
		os.Remove(filepath.Join(tm.logDir, tx.ID+".json"))
		os.RemoveAll(filepath.Join(tm.logDir, tx.ID))
	}
	return nil
}

func (tm *TransactionManager) logs() ([]TransactionLog, error) {
	entries, err := os.ReadDir(tm.logDir)
	if err != nil {
		return nil, err
	}
	var out []TransactionLog
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		tx, err := tm.LoadTransaction(strings.TrimSuffix(name, ".json"))
		if err != nil {
			tm.log.Warn("skipping unreadable transaction log", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (tm *TransactionManager) writeLog(tx *TransactionLog) error {
	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tm.logDir, tx.ID+".json"), data, 0o644)
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
