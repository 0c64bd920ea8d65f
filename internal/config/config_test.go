package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"haul/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("HAUL_DATA_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "haul")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "files.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.VersionPath() != filepath.Join(wantData, "files.version") {
		t.Fatalf("unexpected version path: %q", cfg.VersionPath())
	}
	if cfg.BackupPath() != filepath.Join(wantData, "files.backup.db") {
		t.Fatalf("unexpected backup path: %q", cfg.BackupPath())
	}
	if cfg.Database.JournalMode != "WAL" {
		t.Fatalf("unexpected journal mode: %q", cfg.Database.JournalMode)
	}
	if cfg.Database.StrictMigrations {
		t.Fatal("expected best-effort migrations by default")
	}
	if !cfg.Database.ForeignKeys {
		t.Fatal("expected foreign keys enabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadUsesDataDirEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("HAUL_DATA_DIR", dataDir)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("expected data dir from env, got %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.LogDir != filepath.Join(dataDir, "logs") {
		t.Fatalf("expected log dir to follow data dir, got %q", cfg.Paths.LogDir)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "haul.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Database struct {
			File             string `toml:"file"`
			JournalMode      string `toml:"journal_mode"`
			StrictMigrations bool   `toml:"strict_migrations"`
		} `toml:"database"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "store")
	custom.Database.File = "links.db"
	custom.Database.JournalMode = "delete"
	custom.Database.StrictMigrations = true
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.DatabasePath() != filepath.Join(tempDir, "store", "links.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Database.JournalMode != "DELETE" {
		t.Fatalf("expected journal mode upper-cased, got %q", cfg.Database.JournalMode)
	}
	if !cfg.Database.StrictMigrations {
		t.Fatal("expected strict migrations from file")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected log format normalized, got %q", cfg.Logging.Format)
	}
	if cfg.Database.VersionFile != config.Default().Database.VersionFile {
		t.Fatalf("expected default version file, got %q", cfg.Database.VersionFile)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"nested file name", func(c *config.Config) { c.Database.File = "sub/files.db" }, "database.file"},
		{"backup equals data file", func(c *config.Config) { c.Database.BackupFile = c.Database.File }, "backup_file"},
		{"journal mode", func(c *config.Config) { c.Database.JournalMode = "FAST" }, "journal_mode"},
		{"queue buffer", func(c *config.Config) { c.Database.QueueBuffer = -1 }, "queue_buffer"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "haul.toml")
	if err := os.WriteFile(configPath, []byte("[database]\nfiel = \"x.db\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HAUL_DATA_DIR", "")
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Database.File != "files.db" {
		t.Fatalf("unexpected sample database file %q", cfg.Database.File)
	}
}
