// Package kvstore persists per-plugin key/value settings through the
// database backend. It registers as the "storage" extension.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"haul/internal/database"
)

// Operation names exposed by the extension.
const (
	OpSet    = "set_storage"
	OpGet    = "get_storage"
	OpGetAll = "get_storage_all"
	OpDelete = "delete_storage"
)

// Extension implements database.Extension.
type Extension struct{}

func (Extension) Name() string { return "storage" }

func (Extension) Operations() map[string]database.Operation {
	return map[string]database.Operation{
		OpSet:    set,
		OpGet:    get,
		OpGetAll: getAll,
		OpDelete: remove,
	}
}

func identifierAndKey(args database.Args) (string, string, error) {
	identifier, err := database.Arg[string](args, 0)
	if err != nil {
		return "", "", err
	}
	key, err := database.Arg[string](args, 1)
	if err != nil {
		return "", "", err
	}
	if identifier == "" || key == "" {
		return "", "", fmt.Errorf("%w: identifier and key are required", database.ErrBadArgument)
	}
	return identifier, key, nil
}

// set updates the value for (identifier, key) or inserts it.
func set(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	identifier, key, err := identifierAndKey(args)
	if err != nil {
		return nil, err
	}
	value, err := database.Arg[string](args, 2)
	if err != nil {
		return nil, err
	}

	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx,
		"UPDATE storage SET value = ? WHERE identifier = ? AND key = ?", value, identifier, key); err != nil {
		return nil, fmt.Errorf("update storage: %w", err)
	}
	if cur.RowsAffected() > 0 {
		return nil, nil
	}
	if _, err := cur.Exec(ctx,
		"INSERT INTO storage (identifier, key, value) VALUES (?, ?, ?)", identifier, key, value); err != nil {
		return nil, fmt.Errorf("insert storage: %w", err)
	}
	return nil, nil
}

func get(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	identifier, key, err := identifierAndKey(args)
	if err != nil {
		return nil, err
	}
	var value sql.NullString
	err = tx.CreateCursor().QueryRow(ctx,
		"SELECT value FROM storage WHERE identifier = ? AND key = ? ORDER BY id LIMIT 1", identifier, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return nil, fmt.Errorf("get storage: %w", err)
	}
	return value.String, nil
}

func getAll(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	identifier, err := database.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	rows, err := tx.CreateCursor().Query(ctx,
		"SELECT key, value FROM storage WHERE identifier = ? ORDER BY id", identifier)
	if err != nil {
		return nil, fmt.Errorf("list storage: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan storage: %w", err)
		}
		if _, seen := values[key]; !seen {
			values[key] = value.String
		}
	}
	return values, rows.Err()
}

func remove(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	identifier, key, err := identifierAndKey(args)
	if err != nil {
		return nil, err
	}
	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx, "DELETE FROM storage WHERE identifier = ? AND key = ?", identifier, key); err != nil {
		return nil, fmt.Errorf("delete storage: %w", err)
	}
	return cur.RowsAffected() > 0, nil
}

// Client is a typed front end for the storage operations.
type Client struct {
	backend *database.Backend
}

// NewClient wraps backend. The extension must be registered on it.
func NewClient(backend *database.Backend) *Client {
	return &Client{backend: backend}
}

// Set stores value under (identifier, key).
func (c *Client) Set(ctx context.Context, identifier, key, value string) error {
	_, err := c.backend.Call(ctx, OpSet, database.NewArgs(identifier, key, value))
	return err
}

// SetAsync stores value without waiting for the write.
func (c *Client) SetAsync(identifier, key, value string) error {
	return c.backend.CallAsync(OpSet, database.NewArgs(identifier, key, value))
}

// Get returns the stored value, or "" when nothing is stored.
func (c *Client) Get(ctx context.Context, identifier, key string) (string, error) {
	return database.CallAs[string](ctx, c.backend, OpGet, database.NewArgs(identifier, key))
}

// All returns every key stored for identifier.
func (c *Client) All(ctx context.Context, identifier string) (map[string]string, error) {
	return database.CallAs[map[string]string](ctx, c.backend, OpGetAll, database.NewArgs(identifier))
}

// Delete removes (identifier, key) and reports whether anything was stored.
func (c *Client) Delete(ctx context.Context, identifier, key string) (bool, error) {
	return database.CallAs[bool](ctx, c.backend, OpDelete, database.NewArgs(identifier, key))
}
