package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"haul/internal/logging"
)

// Tx is the job-scoped view of the backend handed to every Operation. It is
// valid only while its job executes.
type Tx struct {
	backend *Backend
	jobID   uuid.UUID
	sqlTx   *sql.Tx

	mu     sync.Mutex
	closed bool
	rows   []*sql.Rows
}

func newTx(backend *Backend, jobID uuid.UUID, sqlTx *sql.Tx) *Tx {
	return &Tx{backend: backend, jobID: jobID, sqlTx: sqlTx}
}

// Backend returns the backend executing this job.
func (t *Tx) Backend() *Backend { return t.backend }

// Logger returns the backend logger tagged with the owning job's id.
func (t *Tx) Logger() *slog.Logger {
	return t.backend.logger.With(logging.String(logging.FieldJobID, t.jobID.String()))
}

// CreateCursor returns a cursor bound to the job's transaction. Cursors must
// not be retained after the operation returns.
func (t *Tx) CreateCursor() *Cursor {
	return &Cursor{tx: t}
}

func (t *Tx) active() (*sql.Tx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrCursorClosed
	}
	return t.sqlTx, nil
}

func (t *Tx) track(rows *sql.Rows) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, rows)
}

// invalidate closes any rows left open by the operation and detaches every
// cursor from the transaction.
func (t *Tx) invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rows := range t.rows {
		_ = rows.Close()
	}
	t.rows = nil
	t.closed = true
}

// Cursor executes statements inside a job's transaction.
type Cursor struct {
	tx           *Tx
	lastInsertID int64
	rowsAffected int64
}

// Exec runs a statement and records its insert id and affected row count.
func (c *Cursor) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	sqlTx, err := c.tx.active()
	if err != nil {
		return nil, err
	}
	res, err := sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	c.record(res)
	return res, nil
}

// ExecMany prepares query once and executes it for every argument row. It
// returns the total number of affected rows.
func (c *Cursor) ExecMany(ctx context.Context, query string, rows [][]any) (int64, error) {
	sqlTx, err := c.tx.active()
	if err != nil {
		return 0, err
	}
	stmt, err := sqlTx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	var total int64
	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return total, fmt.Errorf("row %d: %w", i, err)
		}
		c.record(res)
		total += c.rowsAffected
	}
	c.rowsAffected = total
	return total, nil
}

// Query runs a query. Rows still open when the job finishes are closed.
func (c *Cursor) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	sqlTx, err := c.tx.active()
	if err != nil {
		return nil, err
	}
	rows, err := sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	c.tx.track(rows)
	return rows, nil
}

// QueryRow runs a query expected to return at most one row.
func (c *Cursor) QueryRow(ctx context.Context, query string, args ...any) *Row {
	sqlTx, err := c.tx.active()
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: sqlTx.QueryRowContext(ctx, query, args...)}
}

// LastInsertID returns the rowid produced by the most recent Exec.
func (c *Cursor) LastInsertID() int64 { return c.lastInsertID }

// RowsAffected returns the row count of the most recent Exec or ExecMany.
func (c *Cursor) RowsAffected() int64 { return c.rowsAffected }

func (c *Cursor) record(res sql.Result) {
	if id, err := res.LastInsertId(); err == nil {
		c.lastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		c.rowsAffected = n
	}
}

// Row is the result of QueryRow.
type Row struct {
	row *sql.Row
	err error
}

// Scan copies the row's columns into dest. It returns sql.ErrNoRows when the
// query matched nothing.
func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}
