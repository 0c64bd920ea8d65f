package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"haul/internal/logging"
)

// Table definitions are shared by the schema initializer and the migration
// steps so both paths leave identical text in sqlite_master.
const (
	createPackagesTable = `CREATE TABLE IF NOT EXISTS packages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	folder TEXT,
	password TEXT DEFAULT '',
	site TEXT DEFAULT '',
	queue INTEGER DEFAULT 0 NOT NULL,
	packageorder INTEGER DEFAULT 0 NOT NULL,
	priority INTEGER DEFAULT 0 NOT NULL
)`

	createLinksTable = `CREATE TABLE IF NOT EXISTS links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	name TEXT,
	size INTEGER DEFAULT 0 NOT NULL,
	status INTEGER DEFAULT 3 NOT NULL,
	plugin TEXT DEFAULT 'BasePlugin' NOT NULL,
	error TEXT DEFAULT '',
	linkorder INTEGER DEFAULT 0 NOT NULL,
	package INTEGER DEFAULT 0 NOT NULL,
	FOREIGN KEY(package) REFERENCES packages(id)
)`

	createLinksPackageIndex = `CREATE INDEX IF NOT EXISTS pIdIndex ON links(package)`

	createStorageTable = `CREATE TABLE IF NOT EXISTS storage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT DEFAULT ''
)`

	createUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT DEFAULT '' NOT NULL,
	password TEXT NOT NULL,
	role INTEGER DEFAULT 0 NOT NULL,
	permission INTEGER DEFAULT 0 NOT NULL,
	template TEXT DEFAULT 'default' NOT NULL
)`
)

var schemaStatements = []string{
	createPackagesTable,
	createLinksTable,
	createLinksPackageIndex,
	createStorageTable,
	createUsersTable,
}

// Tables lists every table the current schema defines.
var Tables = []string{"packages", "links", "storage", "users"}

// SchemaOptions controls EnsureSchema.
type SchemaOptions struct {
	// Vacuum runs a compaction pass after the tables are ensured.
	Vacuum bool
	// DataPath is the data file, used for the free-space check before VACUUM.
	DataPath string
	Logger   *slog.Logger
}

// EnsureSchema creates every missing table and index. It is a no-op against
// an up-to-date database apart from the optional compaction.
func EnsureSchema(ctx context.Context, conn *sql.Conn, opts SchemaOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	if !opts.Vacuum {
		return nil
	}
	_, err = compact(ctx, conn, opts.DataPath, logger)
	return err
}

// compact runs VACUUM unless the filesystem lacks room for the rebuilt copy.
// It reports whether the compaction ran.
func compact(ctx context.Context, conn *sql.Conn, dataPath string, logger *slog.Logger) (bool, error) {
	if dataPath != "" {
		info, statErr := os.Stat(dataPath)
		free, freeErr := freeBytes(dataPath)
		if statErr == nil && freeErr == nil && free < uint64(info.Size()) {
			logging.WarnWithContext(logger, "skipping vacuum; not enough free disk space", "vacuum_skipped",
				logging.Int64("data_bytes", info.Size()),
				logging.Any("free_bytes", free),
				logging.String(logging.FieldErrorHint, "free disk space in the data directory"),
				logging.String(logging.FieldImpact, "data file is not compacted"),
			)
			return false, nil
		}
	}
	if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
		return false, fmt.Errorf("vacuum: %w", err)
	}
	return true, nil
}

// SchemaObjects returns the name and SQL of every table and index in the
// connected database, keyed by name.
func SchemaObjects(ctx context.Context, conn *sql.Conn) (map[string]string, error) {
	rows, err := conn.QueryContext(ctx,
		"SELECT name, sql FROM sqlite_master WHERE type IN ('table', 'index') AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	objects := make(map[string]string)
	for rows.Next() {
		var (
			name string
			def  sql.NullString
		)
		if err := rows.Scan(&name, &def); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		objects[name] = def.String
	}
	return objects, rows.Err()
}
