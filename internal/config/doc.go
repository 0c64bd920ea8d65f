// Package config loads, normalizes, and validates haul configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HAUL_DATA_DIR. The Config type centralizes the knobs the database core and
// the CLI need: where the data file, schema version marker, and backup live,
// how the SQLite connection is tuned, and how logs are emitted.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
