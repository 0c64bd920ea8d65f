package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"

	"haul/internal/config"
	"haul/internal/logging"
)

const (
	// CurrentVersion is the schema version this build creates and migrates to.
	CurrentVersion = 4
	// MinimumVersion is the oldest schema that can be migrated in place.
	// Older data files are moved aside and a fresh database is built.
	MinimumVersion = 2
)

// sidecarSuffixes lists SQLite files that travel with the data file.
var sidecarSuffixes = []string{"-wal", "-shm"}

// Paths locates the files the backend owns.
type Paths struct {
	Data    string
	Version string
	Backup  string
	Lock    string
}

// PathsFromConfig resolves file locations from configuration.
func PathsFromConfig(cfg *config.Config) Paths {
	return Paths{
		Data:    cfg.DatabasePath(),
		Version: cfg.VersionPath(),
		Backup:  cfg.BackupPath(),
		Lock:    cfg.LockPath(),
	}
}

// CheckVersion reads the schema version marker and decides whether the
// migration engine must run.
//
// A missing marker is a fresh install: the marker is written with
// CurrentVersion and None is returned. A marker equal to CurrentVersion also
// yields None. An older marker is rewritten to CurrentVersion and its value
// returned; when it is below MinimumVersion the data file is first renamed to
// the backup path. A marker newer than CurrentVersion yields ErrVersionAhead.
func CheckVersion(paths Paths, logger *slog.Logger) (fn.Option[int], error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	stored, exists, err := ReadVersion(paths.Version)
	if err != nil {
		return fn.None[int](), err
	}
	if !exists {
		if err := WriteVersion(paths.Version, CurrentVersion); err != nil {
			return fn.None[int](), err
		}
		logger.Debug("version marker created", logging.Int(logging.FieldSchemaVersion, CurrentVersion))
		return fn.None[int](), nil
	}

	switch {
	case stored == CurrentVersion:
		return fn.None[int](), nil
	case stored > CurrentVersion:
		return fn.None[int](), fmt.Errorf("%w: marker %d, supported %d", ErrVersionAhead, stored, CurrentVersion)
	}

	if stored < MinimumVersion {
		if err := quarantine(paths); err != nil {
			return fn.None[int](), err
		}
		logging.WarnWithContext(logger, "data file version unsupported; moved aside and starting fresh", "schema_quarantine",
			logging.Int("stored_version", stored),
			logging.Int("minimum_version", MinimumVersion),
			logging.String("backup_path", paths.Backup),
			logging.String(logging.FieldErrorHint, "previous data is kept in the backup file"),
			logging.String(logging.FieldImpact, "stored packages, links and settings start empty"),
		)
	}

	if err := WriteVersion(paths.Version, CurrentVersion); err != nil {
		return fn.None[int](), err
	}
	logger.Info("schema upgrade required",
		logging.Int("from_version", stored),
		logging.Int("to_version", CurrentVersion),
	)
	return fn.Some(stored), nil
}

// ReadVersion returns the marker value and whether the marker exists.
func ReadVersion(path string) (int, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read version marker: %w", err)
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, true, fmt.Errorf("parse version marker %s: %w", path, err)
	}
	return version, true, nil
}

// WriteVersion replaces the marker atomically.
func WriteVersion(path string, version int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure marker dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create marker temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.WriteString(strconv.Itoa(version)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write version marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close version marker: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace version marker: %w", err)
	}
	return nil
}

// quarantine renames the data file and its sidecars to the backup path.
// A missing data file is not an error.
func quarantine(paths Paths) error {
	moves := [][2]string{{paths.Data, paths.Backup}}
	for _, suffix := range sidecarSuffixes {
		// Sidecars of an earlier backup do not belong to the file moved now.
		if err := os.Remove(paths.Backup + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale backup sidecar: %w", err)
		}
		moves = append(moves, [2]string{paths.Data + suffix, paths.Backup + suffix})
	}
	for _, move := range moves {
		if err := os.Rename(move[0], move[1]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("move %s aside: %w", filepath.Base(move[0]), err)
		}
	}
	return nil
}
