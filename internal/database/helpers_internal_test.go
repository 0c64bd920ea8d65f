package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// legacySchema returns the DDL a data file at version carried.
func legacySchema(version int) []string {
	stmts := []string{createPackagesTable, createLinksTable, createLinksPackageIndex}
	if version >= 3 {
		stmts = append(stmts, createStorageTable)
	}
	if version >= 4 {
		stmts = append(stmts, createUsersTable)
	}
	return stmts
}

func openTestConn(t *testing.T, path string) *sql.Conn {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(context.Background())
	if err != nil {
		_ = db.Close()
		t.Fatalf("open conn: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		_ = db.Close()
	})
	return conn
}

func seed(t *testing.T, conn *sql.Conn, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		Data:    filepath.Join(dir, "files.db"),
		Version: filepath.Join(dir, "files.version"),
		Backup:  filepath.Join(dir, "files.backup.db"),
		Lock:    filepath.Join(dir, "files.db.lock"),
	}
}
