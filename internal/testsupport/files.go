package testsupport

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	_ "modernc.org/sqlite"

	"haul/internal/config"
)

// WriteVersionMarker writes the schema version marker for cfg.
func WriteVersionMarker(t testing.TB, cfg *config.Config, version int) {
	t.Helper()
	WriteFile(t, cfg.VersionPath(), []byte(strconv.Itoa(version)))
}

// ReadVersionMarker returns the trimmed marker contents for cfg.
func ReadVersionMarker(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := os.ReadFile(cfg.VersionPath())
	if err != nil {
		t.Fatalf("read version marker: %v", err)
	}
	return string(data)
}

// WriteFile creates path with data, making parent directories as needed.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeedDatabase executes statements against the data file outside the
// backend, for building legacy layouts before Setup runs.
func SeedDatabase(t testing.TB, cfg *config.Config, statements ...string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open seed database: %v", err)
	}
	defer db.Close()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
}

// QueryInt runs a single-value query directly against the data file. Use it
// only after the backend has shut down.
func QueryInt(t testing.TB, cfg *config.Config, query string, args ...any) int64 {
	t.Helper()
	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	var n int64
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}
