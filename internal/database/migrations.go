package database

import (
	"context"
	"database/sql"
	"fmt"
)

// MigrationStep upgrades the schema by exactly one version.
type MigrationStep func(ctx context.Context, tx *sql.Tx) error

// migrationSteps is keyed by the version a step upgrades from.
var migrationSteps = map[int]MigrationStep{
	2: execStep(createStorageTable),
	3: execStep(createUsersTable),
}

func execStep(statements ...string) MigrationStep {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// Migrate upgrades a database at version from to CurrentVersion. Steps are
// chained inside a single transaction; any failure rolls back the whole chain
// and is reported as a *MigrationError. Versions below MinimumVersion are
// skipped because their data file was quarantined by CheckVersion.
func Migrate(ctx context.Context, conn *sql.Conn, from int) error {
	return migrate(ctx, conn, from, CurrentVersion, migrationSteps)
}

func migrate(ctx context.Context, conn *sql.Conn, from, to int, steps map[int]MigrationStep) error {
	if from < MinimumVersion || from >= to {
		return nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{From: from, To: to, Err: fmt.Errorf("begin migration tx: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	for version := from; version < to; version++ {
		step, ok := steps[version]
		if !ok {
			return &MigrationError{From: version, To: version + 1, Err: ErrMissingMigration}
		}
		if err := step(ctx, tx); err != nil {
			return &MigrationError{From: version, To: version + 1, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &MigrationError{From: from, To: to, Err: fmt.Errorf("commit migrations: %w", err)}
	}
	return nil
}
