package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotStarted is returned when work is submitted before Setup.
	ErrNotStarted = errors.New("database backend not started")
	// ErrStopped is returned when work is submitted during or after Shutdown.
	ErrStopped = errors.New("database backend stopped")
	// ErrLocked indicates another process holds the data directory lock.
	ErrLocked = errors.New("database is locked by another process")
	// ErrVersionAhead indicates the marker records a newer schema than this build understands.
	ErrVersionAhead = errors.New("schema version is newer than supported")
	// ErrNoSuchOperation is returned when an operation name resolves to nothing.
	ErrNoSuchOperation = errors.New("no such operation")
	// ErrDuplicateExtension is returned when an extension name is registered twice.
	ErrDuplicateExtension = errors.New("extension already registered")
	// ErrExtensionNotRegistered is returned when unregistering an unknown extension.
	ErrExtensionNotRegistered = errors.New("extension not registered")
	// ErrCursorClosed is returned by cursors used after their job finished.
	ErrCursorClosed = errors.New("cursor used outside its job")
	// ErrBadArgument is returned when an operation argument is missing or mistyped.
	ErrBadArgument = errors.New("bad operation argument")
	// ErrMissingMigration marks a gap in the migration chain.
	ErrMissingMigration = errors.New("no migration step")
)

// MigrationError reports a migration step that could not be applied.
type MigrationError struct {
	From int
	To   int
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate schema %d -> %d: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// JobError reports an operation that failed inside the worker. The job's
// transaction was rolled back.
type JobError struct {
	JobID     uuid.UUID
	Operation string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s (%s): %v", shortID(e.JobID), e.Operation, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
