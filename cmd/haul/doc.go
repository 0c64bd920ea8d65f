// Package main hosts the haul CLI entrypoint and command graph.
//
// Every command that touches stored data opens the database backend for the
// duration of the invocation: it takes the data directory lock, runs version
// checks and migrations, registers the filestore, storage and accounts
// extensions, executes its operations through the worker, and shuts the
// backend down again. Commands annotated with skipConfigLoad run without a
// configuration file.
package main
