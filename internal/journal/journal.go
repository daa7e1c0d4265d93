// Package journal records CLI runs (which project was loaded, which files were read or written,
// how many problems were logged) in a gorm database and prunes old runs.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oxhq/btstudio/db"
	"github.com/oxhq/btstudio/internal/logging"
	"github.com/oxhq/btstudio/models"
)

// Journal stores runs. A nil *Journal, or one without a database, records nothing.
type Journal struct {
	db        *gorm.DB
	retention int
	log       *zap.Logger
}

// Open connects to dsn. An empty dsn disables the journal. retention is the number of runs
// kept by Prune; zero or less keeps everything.
func Open(dsn string, retention int, log *zap.Logger) (*Journal, error) {
	log = logging.OrNop(log)
	if dsn == "" {
		return &Journal{retention: retention, log: log}, nil
	}
	conn, err := db.Connect(dsn, log.Core().Enabled(zap.DebugLevel))
	if err != nil {
		return nil, fmt.Errorf("journal %s: %w", dsn, err)
	}
	return New(conn, retention, log), nil
}

// New wraps an already migrated connection.
func New(conn *gorm.DB, retention int, log *zap.Logger) *Journal {
	return &Journal{db: conn, retention: retention, log: logging.OrNop(log)}
}

// IsEnabled reports whether runs are persisted.
func (j *Journal) IsEnabled() bool {
	return j != nil && j.db != nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if !j.IsEnabled() {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Recorder collects one run until Finish stores it.
type Recorder struct {
	j     *Journal
	run   models.Run
	start time.Time
}

// Begin starts recording a run of kind against manifest.
func (j *Journal) Begin(kind, manifest string) *Recorder {
	now := time.Now()
	return &Recorder{
		j:     j,
		start: now,
		run: models.Run{
			ID:        "run_" + uuid.NewString(),
			Kind:      kind,
			Manifest:  manifest,
			StartedAt: now.UTC(),
		},
	}
}

// ID returns the run id.
func (r *Recorder) ID() string { return r.run.ID }

// File notes that the run touched path. data is the content read or written; its digest is
// stored, not the bytes.
func (r *Recorder) File(path, role, action string, data []byte) {
	sum := sha256.Sum256(data)
	r.run.Files = append(r.run.Files, models.RunFile{
		Path:   path,
		Role:   role,
		Action: action,
		Bytes:  len(data),
		Digest: hex.EncodeToString(sum[:]),
	})
}

// Finish stores the run with its outcome and prunes old runs. counter and diagnostics may be nil.
func (r *Recorder) Finish(ctx context.Context, runErr error, counter *logging.Counter, diagnostics any) error {
	r.run.DurationMS = time.Since(r.start).Milliseconds()
	r.run.Success = runErr == nil
	if runErr != nil {
		r.run.Error = runErr.Error()
	}
	if counter != nil {
		r.run.Warnings = int(counter.Warnings())
		r.run.Errors = int(counter.Errors())
	}
	if diagnostics != nil {
		raw, err := json.Marshal(diagnostics)
		if err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}
		r.run.Diagnostics = datatypes.JSON(raw)
	}

	if !r.j.IsEnabled() {
		return nil
	}
	if err := r.j.db.WithContext(ctx).Create(&r.run).Error; err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	r.j.log.Debug("run recorded",
		zap.String("run", r.run.ID),
		zap.String("kind", r.run.Kind),
		zap.Int("files", len(r.run.Files)))

	if _, err := r.j.Prune(ctx); err != nil {
		return err
	}
	return nil
}

// Run returns the recorded run as it will be or was stored.
func (r *Recorder) Run() models.Run { return r.run }

// Prune deletes all but the newest retention runs and returns how many were removed.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	if !j.IsEnabled() || j.retention <= 0 {
		return 0, nil
	}
	var removed int64
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Run{}).
			Order("started_at DESC, id DESC").
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to list old runs: %w", err)
		}
		if len(ids) <= j.retention {
			return nil
		}
		stale := ids[j.retention:]
		// Remote libSQL connections do not always enforce the cascade.
		if err := tx.Where("run_id IN ?", stale).Delete(&models.RunFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete run files: %w", err)
		}
		res := tx.Where("id IN ?", stale).Delete(&models.Run{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete runs: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		j.log.Debug("journal pruned", zap.Int64("runs", removed), zap.Int("retention", j.retention))
	}
	return removed, nil
}

// Recent returns up to limit runs, newest first, with their files.
func (j *Journal) Recent(ctx context.Context, limit int) ([]models.Run, error) {
	if !j.IsEnabled() {
		return nil, nil
	}
	query := j.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var runs []models.Run
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
