// Package database serializes every persistent-storage operation onto a
// single worker goroutine that exclusively owns the SQLite connection.
//
// A Backend is created with New and started with Setup. Startup takes the
// data-directory lock, checks the schema version marker (quarantining data
// files below the supported floor), runs the chained migration steps, and
// ensures every table and index exists before the worker begins serving jobs.
//
// Producers submit work either synchronously (Submit, Call) and wait for the
// recorded result or error, or asynchronously (SubmitAsync, CallAsync) and
// observe failures only through logs. Each job runs inside its own
// transaction: a returned error or panic rolls it back, success commits it,
// and the next job starts only after that boundary is resolved. Jobs are
// executed strictly in submission order.
//
// Collaborators extend the callable surface at runtime by registering an
// Extension on the Backend's Registry; operation names resolve against the
// builtins first and then against extensions in registration order.
//
// Shutdown submits a synchronous barrier, enqueues the stop sentinel, and
// joins the worker, so every job accepted before Shutdown is executed.
package database
