package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "runs", Run{}.TableName())
	assert.Equal(t, "run_files", RunFile{}.TableName())
}

func TestRunModel(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	tests := []struct {
		name          string
		run           Run
		expectedError bool
	}{
		{
			name: "minimal run",
			run:  Run{ID: "run-001", Kind: KindCheck},
		},
		{
			name: "run with files and diagnostics",
			run: Run{
				ID:          "run-002",
				Kind:        KindFormat,
				Manifest:    "/work/sample.btproj.yaml",
				StartedAt:   time.Now(),
				DurationMS:  12,
				Success:     true,
				Warnings:    2,
				Diagnostics: datatypes.JSON(`[{"severity":"warning","message":"too few children"}]`),
				Files: []RunFile{
					{Path: "libs/core.xml", Role: RoleLibrary, Action: ActionUnchanged, Bytes: 10},
					{Path: "trees/main.xml", Role: RoleTree, Action: ActionWritten, Bytes: 20, Digest: "abc"},
				},
			},
		},
		{
			name:          "duplicate id",
			run:           Run{ID: "run-001", Kind: KindCheck},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Create(&tt.run).Error
			if tt.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var loaded Run
			require.NoError(t, db.Preload("Files").First(&loaded, "id = ?", tt.run.ID).Error)
			assert.Equal(t, tt.run.Kind, loaded.Kind)
			assert.Equal(t, tt.run.Success, loaded.Success)
			assert.Len(t, loaded.Files, len(tt.run.Files))
			for _, f := range loaded.Files {
				assert.Equal(t, tt.run.ID, f.RunID)
			}
		})
	}
}

func TestRunDiagnosticsJSON(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	diags, err := json.Marshal([]map[string]string{{"severity": "error", "message": "unknown type"}})
	require.NoError(t, err)
	require.NoError(t, db.Create(&Run{ID: "run-json", Kind: KindCheck, Diagnostics: diags}).Error)

	var loaded Run
	require.NoError(t, db.First(&loaded, "id = ?", "run-json").Error)
	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(loaded.Diagnostics, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "unknown type", decoded[0]["message"])
}

func TestRunFileCascade(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	run := Run{
		ID:   "run-cascade",
		Kind: KindRenameBranch,
		Files: []RunFile{
			{Path: "a.xml", Role: RoleTree, Action: ActionWritten},
			{Path: "a.dgm", Role: RoleDiagram, Action: ActionWritten},
		},
	}
	require.NoError(t, db.Create(&run).Error)

	var count int64
	require.NoError(t, db.Model(&RunFile{}).Where("run_id = ?", run.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	require.NoError(t, db.Delete(&Run{}, "id = ?", run.ID).Error)
	require.NoError(t, db.Model(&RunFile{}).Where("run_id = ?", run.ID).Count(&count).Error)
	assert.Zero(t, count)

	err := db.Create(&RunFile{RunID: "missing", Path: "x.xml"}).Error
	assert.Error(t, err, "file rows need an existing run")
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps the in-memory database shared.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	_, err = sqlDB.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	err = db.AutoMigrate(&Run{}, &RunFile{})
	require.NoError(t, err)

	return db
}

func cleanupTestDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
