package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"haul/internal/logging"
)

// Health is a diagnostic snapshot of the data file and the worker.
type Health struct {
	DataPath        string
	DataExists      bool
	DataBytes       int64
	MarkerVersion   int
	CurrentVersion  int
	TablesPresent   []string
	TablesMissing   []string
	RowCounts       map[string]int64
	IntegrityOK     bool
	IntegrityResult string
	Extensions      []string
	Stats           Stats
}

// VersionInfo describes the marker and the versions this build supports.
type VersionInfo struct {
	Marker  int
	Current int
	Minimum int
}

func syncOperation(context.Context, *Tx, Args) (any, error) {
	return nil, nil
}

func schemaVersionOperation(_ context.Context, tx *Tx, _ Args) (any, error) {
	marker, _, err := ReadVersion(tx.Backend().paths.Version)
	if err != nil {
		return nil, err
	}
	return VersionInfo{Marker: marker, Current: CurrentVersion, Minimum: MinimumVersion}, nil
}

// CheckHealth collects diagnostics on the worker.
func (b *Backend) CheckHealth(ctx context.Context) (Health, error) {
	return CallAs[Health](ctx, b, "health", Args{})
}

// SchemaVersion reads the version marker on the worker.
func (b *Backend) SchemaVersion(ctx context.Context) (VersionInfo, error) {
	return CallAs[VersionInfo](ctx, b, "schema_version", Args{})
}

func (b *Backend) healthOperation(ctx context.Context, tx *Tx, _ Args) (any, error) {
	health := Health{
		DataPath:       b.paths.Data,
		CurrentVersion: CurrentVersion,
		RowCounts:      make(map[string]int64),
		Extensions:     b.registry.Extensions(),
		Stats:          b.Stats(),
	}

	info, err := os.Stat(b.paths.Data)
	switch {
	case err == nil:
		health.DataExists = true
		health.DataBytes = info.Size()
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("stat data file: %w", err)
	}

	if marker, _, err := ReadVersion(b.paths.Version); err == nil {
		health.MarkerVersion = marker
	}

	cur := tx.CreateCursor()
	for _, table := range Tables {
		var name string
		err := cur.QueryRow(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			health.TablesMissing = append(health.TablesMissing, table)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("query table %s: %w", table, err)
		}
		health.TablesPresent = append(health.TablesPresent, table)

		var count int64
		if err := cur.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		health.RowCounts[table] = count
	}
	slices.Sort(health.TablesMissing)

	var integrity string
	if err := cur.QueryRow(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityResult = integrity
	health.IntegrityOK = strings.EqualFold(integrity, "ok")

	return health, nil
}

// Vacuum compacts the data file on the worker, outside any transaction. It
// reports false when the compaction was skipped for lack of disk space.
func (b *Backend) Vacuum(ctx context.Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	job := newJob(ctx, "vacuum", nil, Args{}, false)
	job.maintenance = func(ctx context.Context, conn *sql.Conn) (any, error) {
		ran, err := compact(ctx, conn, b.paths.Data, b.logger)
		if err == nil && ran {
			b.logger.Info("vacuum complete", logging.String("path", b.paths.Data))
		}
		return ran, err
	}
	if _, err := b.enqueue(job); err != nil {
		return false, err
	}
	res, err := job.wait(ctx)
	return castResult[bool](res, err)
}
