package testsupport

import (
	"path/filepath"
	"testing"

	"haul/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Compaction on start is disabled; use WithVacuum to enable it.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.VacuumOnStart = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithStrictMigrations makes a failed migration abort startup.
func WithStrictMigrations() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.StrictMigrations = true
	}
}

// WithVacuum toggles compaction during startup.
func WithVacuum(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.VacuumOnStart = enabled
	}
}

// WithQueueBuffer overrides the job queue buffer size.
func WithQueueBuffer(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.QueueBuffer = size
	}
}

// WithJournalMode overrides the SQLite journal mode.
func WithJournalMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.JournalMode = mode
	}
}

// WithBusyTimeout overrides how long SQLite waits on a held lock before
// reporting SQLITE_BUSY.
func WithBusyTimeout(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.BusyTimeoutMS = ms
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
