package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/queue"

	"haul/internal/config"
	"haul/internal/logging"
)

// State is the worker lifecycle position.
type State int32

const (
	// StateIdle is the state before Setup.
	StateIdle State = iota
	// StateStarting covers locking, version check, migration and schema setup.
	StateStarting
	// StateReady means the worker is executing jobs.
	StateReady
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option customizes a Backend.
type Option func(*Backend)

// WithLogger sets the logger; the backend tags it with component=database.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logging.NewComponentLogger(logger, "database")
		}
	}
}

// WithRegistry injects the extension registry.
func WithRegistry(registry *Registry) Option {
	return func(b *Backend) {
		if registry != nil {
			b.registry = registry
		}
	}
}

// Backend is the database access core. All storage work is executed by a
// single worker goroutine that owns the connection.
type Backend struct {
	cfg      config.Database
	paths    Paths
	logger   *slog.Logger
	registry *Registry
	builtins map[string]Operation
	steps    map[int]MigrationStep

	// mu guards state and closing, and is held for reading while a job is
	// handed to the queue so the stop sentinel is always the last item.
	mu       sync.RWMutex
	state    State
	closing  bool
	jobs     *queue.ConcurrentQueue
	ready    chan struct{}
	done     chan struct{}
	startErr error

	// txMu brackets each job's execution and commit or rollback.
	txMu sync.Mutex
	db   *sql.DB
	conn *sql.Conn
	lock *flock.Flock

	migratedFrom fn.Option[int]

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a backend for cfg. Nothing touches the filesystem until Setup.
func New(cfg *config.Config, opts ...Option) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("database: config is nil")
	}
	b := &Backend{
		cfg:          cfg.Database,
		paths:        PathsFromConfig(cfg),
		logger:       logging.NewComponentLogger(nil, "database"),
		registry:     NewRegistry(),
		steps:        migrationSteps,
		migratedFrom: fn.None[int](),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.builtins = map[string]Operation{
		"sync":           syncOperation,
		"health":         b.healthOperation,
		"schema_version": schemaVersionOperation,
	}
	return b, nil
}

// Registry returns the backend's extension registry.
func (b *Backend) Registry() *Registry { return b.registry }

// Paths returns the files owned by the backend.
func (b *Backend) Paths() Paths { return b.paths }

// RegisterExtension adds ext to the registry.
func (b *Backend) RegisterExtension(ext Extension) error {
	if err := b.registry.Register(ext); err != nil {
		return err
	}
	b.logger.Debug("extension registered", logging.String(logging.FieldExtension, ext.Name()))
	return nil
}

// UnregisterExtension removes ext from the registry.
func (b *Backend) UnregisterExtension(ext Extension) error {
	return b.registry.Unregister(ext)
}

// State reports the worker lifecycle state.
func (b *Backend) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// MigratedFrom reports the schema version upgraded from during Setup, if any.
func (b *Backend) MigratedFrom() fn.Option[int] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.migratedFrom
}

// Setup starts the worker and blocks until it is ready or startup fails.
// Calling Setup on a ready backend is a no-op.
func (b *Backend) Setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.Lock()
	switch b.state {
	case StateIdle:
		b.state = StateStarting
		b.jobs = queue.NewConcurrentQueue(b.cfg.QueueBuffer)
		b.jobs.Start()
		b.ready = make(chan struct{})
		b.done = make(chan struct{})
		go b.run()
	case StateStopped:
		startErr := b.startErr
		b.mu.Unlock()
		if startErr != nil {
			return startErr
		}
		return ErrStopped
	}
	ready := b.ready
	b.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.startErr
}

// Submit runs op on the worker and waits for its result. The job's error,
// wrapped in a *JobError, is returned when the operation fails. If ctx ends
// while the job is still queued the job is skipped.
func (b *Backend) Submit(ctx context.Context, op Operation, args Args) (any, error) {
	if op == nil {
		return nil, fmt.Errorf("%w: nil operation", ErrBadArgument)
	}
	return b.submit(ctx, operationName(op), op, args)
}

// SubmitAsync queues op and returns immediately. Its outcome is only visible
// in the logs. The returned error reports that the job was not accepted.
func (b *Backend) SubmitAsync(op Operation, args Args) error {
	if op == nil {
		return fmt.Errorf("%w: nil operation", ErrBadArgument)
	}
	_, err := b.enqueue(newJob(nil, operationName(op), op, args, true))
	return err
}

// Call resolves an operation by name and runs it synchronously.
func (b *Backend) Call(ctx context.Context, name string, args Args) (any, error) {
	op, err := b.resolve(name)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, name, op, args)
}

// CallAsync resolves an operation by name and queues it.
func (b *Backend) CallAsync(name string, args Args) error {
	op, err := b.resolve(name)
	if err != nil {
		return err
	}
	_, err = b.enqueue(newJob(nil, name, op, args, true))
	return err
}

func (b *Backend) resolve(name string) (Operation, error) {
	if op, ok := b.builtins[name]; ok {
		return op, nil
	}
	if op, _, ok := b.registry.Resolve(name); ok {
		return op, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchOperation, name)
}

func (b *Backend) submit(ctx context.Context, name string, op Operation, args Args) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	job, err := b.enqueue(newJob(ctx, name, op, args, false))
	if err != nil {
		return nil, err
	}
	return job.wait(ctx)
}

func (b *Backend) enqueue(job *Job) (*Job, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.state == StateIdle:
		return nil, ErrNotStarted
	case b.closing || b.state == StateStopped:
		return nil, ErrStopped
	}
	b.submitted.Add(1)
	b.jobs.ChanIn() <- job
	return job, nil
}

// Sync blocks until every job queued before it has been committed or rolled back.
func (b *Backend) Sync(ctx context.Context) error {
	_, err := b.submit(ctx, "sync", syncOperation, Args{})
	return err
}

// Shutdown drains pending work and stops the worker. It is safe to call more
// than once; calls on a backend that never started return nil.
func (b *Backend) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	state, closing, done := b.state, b.closing, b.done
	b.mu.RUnlock()
	if state == StateIdle {
		return nil
	}

	if !closing && state != StateStopped {
		if err := b.Sync(ctx); err != nil && !errors.Is(err, ErrStopped) {
			b.logger.Warn("sync before shutdown failed", logging.Error(err))
		}
		b.signalStop()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signalStop enqueues the stop sentinel once. No job can be queued after it.
func (b *Backend) signalStop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		return
	}
	b.closing = true
	b.jobs.ChanIn() <- stopSignal{}
}

// Stats is a snapshot of job counters.
type Stats struct {
	State     State
	Submitted int64
	Completed int64
	Failed    int64
	Pending   int64
}

// Stats returns the current job counters.
func (b *Backend) Stats() Stats {
	submitted := b.submitted.Load()
	completed := b.completed.Load()
	failed := b.failed.Load()
	return Stats{
		State:     b.State(),
		Submitted: submitted,
		Completed: completed,
		Failed:    failed,
		Pending:   max(submitted-completed-failed, 0),
	}
}

// SubmitAs is Submit with the result asserted to T.
func SubmitAs[T any](ctx context.Context, b *Backend, op Operation, args Args) (T, error) {
	res, err := b.Submit(ctx, op, args)
	return castResult[T](res, err)
}

// CallAs is Call with the result asserted to T.
func CallAs[T any](ctx context.Context, b *Backend, name string, args Args) (T, error) {
	res, err := b.Call(ctx, name, args)
	return castResult[T](res, err)
}

func castResult[T any](res any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T, want %T", res, zero)
	}
	return v, nil
}
