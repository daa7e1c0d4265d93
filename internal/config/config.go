package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration.
type Config struct {
	HistoryDepth  int
	JournalDSN    string
	RetentionRuns int
	Backup        bool
	Fsync         bool
	TxLogDir      string
	LogLevel      string
}

// Load reads the optional .env files (default ".env") and then the environment. Values already
// set in the environment win over the files.
func Load(envFiles ...string) *Config {
	_ = godotenv.Load(envFiles...)
	return LoadConfig()
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := &Config{
		HistoryDepth:  64,
		JournalDSN:    os.Getenv("BTSTUDIO_JOURNAL_DSN"),
		RetentionRuns: 20,
		Backup:        true,
		Fsync:         false,
		TxLogDir:      os.Getenv("BTSTUDIO_TXLOG_DIR"),
		LogLevel:      strings.ToLower(os.Getenv("BTSTUDIO_LOG_LEVEL")),
	}

	if cfg.TxLogDir == "" {
		cfg.TxLogDir = ".btstudio/tx"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if depthStr := os.Getenv("BTSTUDIO_HISTORY_DEPTH"); depthStr != "" {
		if depth, err := strconv.Atoi(depthStr); err == nil && depth >= 0 {
			cfg.HistoryDepth = depth
		}
	}

	if retentionRunsStr := os.Getenv("BTSTUDIO_JOURNAL_RETENTION"); retentionRunsStr != "" {
		if retentionRuns, err := strconv.Atoi(retentionRunsStr); err == nil && retentionRuns >= 0 {
			cfg.RetentionRuns = retentionRuns
		}
	}

	if backupStr := os.Getenv("BTSTUDIO_BACKUP"); backupStr != "" {
		if backup, err := strconv.ParseBool(backupStr); err == nil {
			cfg.Backup = backup
		}
	}

	if fsyncStr := os.Getenv("BTSTUDIO_FSYNC"); fsyncStr != "" {
		if fsync, err := strconv.ParseBool(fsyncStr); err == nil {
			cfg.Fsync = fsync
		}
	}

	return cfg
}
