package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	dataDir := strings.TrimSpace(c.Paths.DataDir)
	if dataDir == "" || dataDir == defaultDataDir {
		if value, ok := os.LookupEnv(dataDirEnv); ok && strings.TrimSpace(value) != "" {
			dataDir = strings.TrimSpace(value)
		}
	}
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	var err error
	if c.Paths.DataDir, err = expandPath(dataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	logDir := strings.TrimSpace(c.Paths.LogDir)
	if logDir == "" || (logDir == defaultLogDir && dataDir != defaultDataDir) {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.File = strings.TrimSpace(c.Database.File)
	if c.Database.File == "" {
		c.Database.File = defaultDatabaseFile
	}
	c.Database.VersionFile = strings.TrimSpace(c.Database.VersionFile)
	if c.Database.VersionFile == "" {
		c.Database.VersionFile = defaultVersionFile
	}
	c.Database.BackupFile = strings.TrimSpace(c.Database.BackupFile)
	if c.Database.BackupFile == "" {
		c.Database.BackupFile = defaultBackupFile
	}
	c.Database.JournalMode = strings.ToUpper(strings.TrimSpace(c.Database.JournalMode))
	if c.Database.JournalMode == "" {
		c.Database.JournalMode = defaultJournalMode
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Database.QueueBuffer == 0 {
		c.Database.QueueBuffer = defaultQueueBuffer
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
