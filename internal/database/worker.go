package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"haul/internal/logging"
)

const (
	// sqliteTxLockImmediate makes BeginTx take the write lock up front, so
	// contention surfaces as SQLITE_BUSY at BEGIN where it can be retried.
	sqliteTxLockImmediate = "_txlock=immediate"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// run is the worker goroutine.
func (b *Backend) run() {
	defer close(b.done)

	if err := b.start(context.Background()); err != nil {
		b.logger.Error("database startup failed", logging.Error(err))
		b.mu.Lock()
		b.startErr = err
		b.state = StateStopped
		b.mu.Unlock()
		b.signalStop()
		b.closeResources()
		close(b.ready)
		b.rejectPending(err)
		b.jobs.Stop()
		return
	}

	b.setState(StateReady)
	close(b.ready)
	b.logger.Info("database ready", logging.String("path", b.paths.Data))

	b.loop()

	b.closeResources()
	b.jobs.Stop()
	b.setState(StateStopped)
	b.logger.Info("database stopped",
		logging.Int64("completed", b.completed.Load()),
		logging.Int64("failed", b.failed.Load()),
	)
}

func (b *Backend) setState(state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}

// start acquires the lock, checks the version marker, opens the connection,
// migrates and ensures the schema.
func (b *Backend) start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(b.paths.Data), 0o755); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	b.lock = flock.New(b.paths.Lock)
	locked, err := b.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire database lock: %w", err)
	}
	if !locked {
		b.lock = nil
		return fmt.Errorf("%w: %s", ErrLocked, b.paths.Lock)
	}

	migrateFrom, err := CheckVersion(b.paths, b.logger)
	if err != nil {
		return err
	}

	if err := b.open(ctx); err != nil {
		return err
	}

	if err := b.migrate(ctx, migrateFrom.UnwrapOr(CurrentVersion)); err != nil {
		return err
	}
	b.mu.Lock()
	b.migratedFrom = migrateFrom
	b.mu.Unlock()

	return EnsureSchema(ctx, b.conn, SchemaOptions{
		Vacuum:   b.cfg.VacuumOnStart,
		DataPath: b.paths.Data,
		Logger:   b.logger,
	})
}

func (b *Backend) open(ctx context.Context) error {
	db, err := sql.Open("sqlite", b.paths.Data+"?"+sqliteTxLockImmediate)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	b.db = db

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sqlite connection: %w", err)
	}
	b.conn = conn

	foreignKeys := "OFF"
	if b.cfg.ForeignKeys {
		foreignKeys = "ON"
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", b.cfg.JournalMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", b.cfg.BusyTimeoutMS),
		fmt.Sprintf("PRAGMA foreign_keys = %s", foreignKeys),
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// migrate applies the migration chain. A failure aborts startup only when
// strict migrations are configured; otherwise the schema initializer is left
// to create whatever is missing.
func (b *Backend) migrate(ctx context.Context, from int) error {
	if from >= CurrentVersion {
		return nil
	}
	if from < MinimumVersion {
		b.logger.Info("building fresh database", logging.Int("from_version", from))
		return nil
	}

	err := migrate(ctx, b.conn, from, CurrentVersion, b.steps)
	if err == nil {
		b.logger.Info("schema migrated",
			logging.Int("from_version", from),
			logging.Int("to_version", CurrentVersion),
		)
		return nil
	}

	logging.ErrorWithContext(b.logger, "schema migration failed", "migration_failed",
		logging.Error(err),
		logging.Int("from_version", from),
		logging.Bool("strict", b.cfg.StrictMigrations),
		logging.String(logging.FieldErrorHint, "inspect the data file or restore a backup"),
	)
	if !b.cfg.StrictMigrations {
		return nil
	}
	// Leave the marker at the old version so the next start retries.
	if markErr := WriteVersion(b.paths.Version, from); markErr != nil {
		b.logger.Warn("restore version marker failed", logging.Error(markErr))
	}
	return err
}

// loop executes jobs until the stop sentinel is dequeued.
func (b *Backend) loop() {
	for item := range b.jobs.ChanOut() {
		switch v := item.(type) {
		case stopSignal:
			return
		case *Job:
			b.execute(v)
		}
	}
}

// rejectPending fails every job queued ahead of the stop sentinel.
func (b *Backend) rejectPending(cause error) {
	for item := range b.jobs.ChanOut() {
		job, ok := item.(*Job)
		if !ok {
			return
		}
		b.complete(job, nil, fmt.Errorf("%w: %w", ErrStopped, cause))
	}
}

func (b *Backend) execute(job *Job) {
	b.txMu.Lock()
	defer b.txMu.Unlock()

	if err := job.ctx.Err(); err != nil {
		b.complete(job, nil, err)
		return
	}

	// A started job runs to completion even if its submitter stops waiting.
	ctx := context.WithoutCancel(job.ctx)

	var (
		result any
		err    error
	)
	if job.maintenance != nil {
		result, err = runProtected(func() (any, error) { return job.maintenance(ctx, b.conn) })
	} else {
		result, err = b.runInTx(ctx, job)
	}

	if err != nil {
		err = &JobError{JobID: job.ID, Operation: job.Name, Err: err}
		logging.ErrorWithContext(b.logger, "database job failed", "job_failed",
			logging.String(logging.FieldJobID, job.ID.String()),
			logging.String(logging.FieldOperation, job.Name),
			logging.String("args", job.args.String()),
			logging.Bool("async", job.Async),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job's changes were rolled back"),
		)
	}
	b.complete(job, result, err)
}

func (b *Backend) runInTx(ctx context.Context, job *Job) (any, error) {
	var sqlTx *sql.Tx
	if err := retryOnBusy(ctx, func() error {
		var beginErr error
		sqlTx, beginErr = b.conn.BeginTx(ctx, nil)
		return beginErr
	}); err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	tx := newTx(b, job.ID, sqlTx)
	result, err := runProtected(func() (any, error) { return job.op(ctx, tx, job.args) })
	tx.invalidate()

	if err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// runProtected converts a panic into an error.
func runProtected(f func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return f()
}

func (b *Backend) complete(job *Job, result any, err error) {
	job.finish(result, err, b.record)
}

func (b *Backend) record(err error) {
	if err != nil {
		b.failed.Add(1)
		return
	}
	b.completed.Add(1)
}

func (b *Backend) closeResources() {
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			b.logger.Warn("close connection failed", logging.Error(err))
		}
		b.conn = nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.logger.Warn("close database failed", logging.Error(err))
		}
		b.db = nil
	}
	if b.lock != nil {
		if err := b.lock.Unlock(); err != nil {
			b.logger.Warn("release database lock failed", logging.Error(err))
		}
		b.lock = nil
	}
}
