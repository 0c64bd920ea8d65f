package database

import (
	"context"
	"database/sql"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Operation is a unit of storage logic executed by the worker inside a
// transaction. Returning an error (or panicking) rolls the transaction back.
type Operation func(ctx context.Context, tx *Tx, args Args) (any, error)

// maintenanceFunc runs directly on the connection, outside any transaction.
type maintenanceFunc func(ctx context.Context, conn *sql.Conn) (any, error)

// Job is a queued unit of work. It is completed exactly once by the worker.
type Job struct {
	ID    uuid.UUID
	Name  string
	Async bool

	op          Operation
	maintenance maintenanceFunc
	args        Args
	ctx         context.Context

	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

func newJob(ctx context.Context, name string, op Operation, args Args, async bool) *Job {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Job{
		ID:    uuid.New(),
		Name:  name,
		Async: async,
		op:    op,
		args:  args,
		ctx:   ctx,
		done:  make(chan struct{}),
	}
}

// Done is closed once the job has finished executing.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result returns the recorded outcome. It must only be called after Done is
// closed. When err is non-nil the result is always nil.
func (j *Job) Result() (any, error) {
	return j.result, j.err
}

// wait blocks until the job completes or ctx ends.
func (j *Job) wait(ctx context.Context) (any, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish records the outcome, runs record, and releases waiters. Later calls
// are ignored.
func (j *Job) finish(result any, err error, record func(error)) {
	j.once.Do(func() {
		if err != nil {
			result = nil
		}
		j.result, j.err = result, err
		if record != nil {
			record(err)
		}
		close(j.done)
	})
}

// operationName derives a readable job name from a function value.
func operationName(op Operation) string {
	if op == nil {
		return "<nil>"
	}
	fullName := runtime.FuncForPC(reflect.ValueOf(op).Pointer()).Name()
	if idx := strings.LastIndex(fullName, "/"); idx >= 0 {
		fullName = fullName[idx+1:]
	}
	return strings.TrimSuffix(fullName, "-fm")
}

// stopSignal is the sentinel that ends the worker loop.
type stopSignal struct{}
