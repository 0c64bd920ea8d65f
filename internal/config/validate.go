package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

var validJournalModes = map[string]struct{}{
	"DELETE":   {},
	"TRUNCATE": {},
	"PERSIST":  {},
	"MEMORY":   {},
	"WAL":      {},
	"OFF":      {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	names := map[string]string{
		"database.file":         c.Database.File,
		"database.version_file": c.Database.VersionFile,
		"database.backup_file":  c.Database.BackupFile,
	}
	for key, name := range names {
		if filepath.Base(name) != name {
			return fmt.Errorf("%s must be a file name, got %q", key, name)
		}
	}
	if c.Database.File == c.Database.BackupFile {
		return errors.New("database.backup_file must differ from database.file")
	}
	if c.Database.File == c.Database.VersionFile {
		return errors.New("database.version_file must differ from database.file")
	}
	if _, ok := validJournalModes[c.Database.JournalMode]; !ok {
		return fmt.Errorf("database.journal_mode: unsupported value %q", c.Database.JournalMode)
	}
	if c.Database.BusyTimeoutMS < 0 {
		return errors.New("database.busy_timeout_ms must be non-negative")
	}
	if c.Database.QueueBuffer < 1 {
		return errors.New("database.queue_buffer must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
